package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignInsTotal counts sign-in attempts.
	// Labels: result (ok, precondition, invalid_email, bad_credentials, too_many_attempts, unknown)
	SignInsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kokoro",
			Subsystem: "auth",
			Name:      "sign_ins_total",
			Help:      "Total number of sign-in attempts by result",
		},
		[]string{"result"},
	)

	// SubmissionsTotal counts journal submissions.
	// Labels: result (ok, invalid, store_error)
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kokoro",
			Subsystem: "journal",
			Name:      "submissions_total",
			Help:      "Total number of journal entry submissions by result",
		},
		[]string{"result"},
	)

	// FeedbackTotal counts AI comment requests.
	// Labels: outcome (ok, fallback)
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kokoro",
			Subsystem: "feedback",
			Name:      "requests_total",
			Help:      "Total number of feedback generations by outcome",
		},
		[]string{"outcome"},
	)

	FeedbackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kokoro",
			Subsystem: "feedback",
			Name:      "request_duration_seconds",
			Help:      "Duration of completion requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// LiveSubscriptions is the number of open entry subscriptions.
	LiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kokoro",
			Subsystem: "journal",
			Name:      "live_subscriptions",
			Help:      "Number of open live entry subscriptions",
		},
	)
)
