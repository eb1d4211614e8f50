package middleware

import (
	"net/http"
	"strconv"

	"github.com/AnshRaj112/kokoro-journal/pkg/clientip"
	"golang.org/x/time/rate"
)

// Submission rate limit: per identity, each submission costs one completion
// request. 6 req/min, burst 3.

const (
	submitRatePerMinute = 6
	submitBurst         = 3
)

var submitLimiters = newLimiterSet(rate.Limit(float64(submitRatePerMinute)/60), submitBurst)

// SubmitRateLimit limits POST requests per signed-in identity, falling back
// to the client IP. Use after RequireIdentity.
func SubmitRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		key := "ip:" + clientip.RealClientIP(r)
		if identity := IdentityFrom(r.Context()); identity != nil {
			key = "user:" + identity.ID
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(submitBurst))
		if !submitLimiters.allow(key) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			writeJSONError(w, http.StatusTooManyRequests, "Too many submissions. Please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
