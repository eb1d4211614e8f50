package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/AnshRaj112/kokoro-journal/internal/services"
	"go.uber.org/zap"
)

// Handler serves the journal's pages and JSON API.
type Handler struct {
	auth          *services.Auth
	journal       *services.Journal
	store         services.EntryStore
	log           *zap.Logger
	secureCookies bool

	// Live sockets outlive the request once hijacked; they derive from
	// socketsCtx and are tracked in sockets. socketsMu orders Add against
	// CloseSockets.
	socketsMu    sync.Mutex
	socketsCtx   context.Context
	closeSockets context.CancelFunc
	sockets      sync.WaitGroup
}

func New(auth *services.Auth, journal *services.Journal, store services.EntryStore, log *zap.Logger, secureCookies bool) *Handler {
	socketsCtx, closeSockets := context.WithCancel(context.Background())
	return &Handler{
		auth:          auth,
		journal:       journal,
		store:         store,
		log:           log.Named("http"),
		secureCookies: secureCookies,
		socketsCtx:    socketsCtx,
		closeSockets:  closeSockets,
	}
}

// CloseSockets asks every open /ws/records connection to close. Register it
// with http.Server.RegisterOnShutdown; Shutdown does not track hijacked
// connections.
func (h *Handler) CloseSockets() {
	h.socketsMu.Lock()
	defer h.socketsMu.Unlock()
	h.closeSockets()
}

// WaitSockets blocks until every live connection has unmounted its gate or
// ctx is done. Call it after CloseSockets.
func (h *Handler) WaitSockets(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.sockets.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackSocket registers a live connection unless the handler is closing.
func (h *Handler) trackSocket() bool {
	h.socketsMu.Lock()
	defer h.socketsMu.Unlock()
	if h.socketsCtx.Err() != nil {
		return false
	}
	h.sockets.Add(1)
	return true
}

// Response is the envelope of every JSON answer.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}
