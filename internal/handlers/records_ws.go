package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/AnshRaj112/kokoro-journal/internal/middleware"
	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"github.com/AnshRaj112/kokoro-journal/internal/services"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsMessageRecords   = "records"
	wsMessageSignedOut = "signed_out"

	wsWriteTimeout = 10 * time.Second
	wsPongWait     = 90 * time.Second
	wsPingInterval = 30 * time.Second
)

var recordsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers send the session cookie on same-origin upgrades; other
	// origins are rejected by gorilla's default same-host check.
}

// RecordsMessage is pushed to the history panel.
type RecordsMessage struct {
	Type     string                `json:"type"`
	Records  []models.JournalEntry `json:"records,omitempty"`
	Redirect string                `json:"redirect,omitempty"`
}

// socketView queues gate output for the connection's writer. Record
// snapshots replace each other so a slow client only gets the latest one.
type socketView struct {
	mu      sync.Mutex
	pending []RecordsMessage
	notify  chan struct{}
}

func newSocketView() *socketView {
	return &socketView{notify: make(chan struct{}, 1)}
}

func (v *socketView) Entries(entries []models.JournalEntry) {
	if entries == nil {
		entries = []models.JournalEntry{}
	}
	v.push(RecordsMessage{Type: wsMessageRecords, Records: entries})
}

func (v *socketView) SignedOut() {
	v.push(RecordsMessage{Type: wsMessageSignedOut, Redirect: "/login"})
}

func (v *socketView) push(msg RecordsMessage) {
	v.mu.Lock()
	if n := len(v.pending); n > 0 && msg.Type == wsMessageRecords && v.pending[n-1].Type == wsMessageRecords {
		v.pending[n-1] = msg
	} else {
		v.pending = append(v.pending, msg)
	}
	v.mu.Unlock()

	select {
	case v.notify <- struct{}{}:
	default:
	}
}

func (v *socketView) drain() []RecordsMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.pending
	v.pending = nil
	return out
}

// RecordsWebSocket handles GET /ws/records: the live history of the
// signed-in identity, newest first.
func (h *Handler) RecordsWebSocket(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if token == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}
	if _, err := h.auth.Current(r.Context(), token); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}
		h.log.Error("session lookup failed", zap.Error(err))
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}

	if !h.trackSocket() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.sockets.Done()

	conn, err := recordsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(h.socketsCtx)
	defer cancel()

	view := newSocketView()
	gate := services.NewGate(h.auth, h.store, view, h.log)
	if err := gate.Mount(ctx, token); err != nil {
		h.log.Error("failed to mount session gate", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unavailable"),
			time.Now().Add(wsWriteTimeout))
		return
	}
	defer gate.Unmount()

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeRecords(ctx, conn, view, done)
		// Unblocks the reader when the writer stops first.
		_ = conn.Close()
	}()

	conn.SetReadLimit(4 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		// The client never sends anything meaningful; reading keeps
		// control frames flowing and notices the disconnect.
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	<-writerDone
}

func (h *Handler) writeRecords(ctx context.Context, conn *websocket.Conn, view *socketView, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteTimeout))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case <-view.notify:
			for _, msg := range view.drain() {
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
				if msg.Type == wsMessageSignedOut {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
						time.Now().Add(wsWriteTimeout))
					return
				}
			}
		}
	}
}
