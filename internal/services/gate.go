package services

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/AnshRaj112/kokoro-journal/internal/models"
	"go.uber.org/zap"
)

// ErrGateMounted is returned when Mount is called twice or after Unmount.
var ErrGateMounted = errors.New("gate already mounted")

// IdentitySource reports identity changes for a session token.
type IdentitySource interface {
	OnIdentityChange(ctx context.Context, token string, listener func(*models.Identity)) (func(), error)
}

// GateView receives what the gate decides to show. Calls never overlap and
// must not block.
type GateView interface {
	Entries(entries []models.JournalEntry)
	SignedOut()
}

// Gate ties one live connection to the current identity: while signed in
// it keeps exactly one entry subscription open for that identity's
// namespace, and on sign-out it releases it and tells the view.
type Gate struct {
	source IdentitySource
	store  EntryStore
	view   GateView
	log    *zap.Logger

	mu           sync.Mutex
	ctx          context.Context
	identity     *models.Identity
	entries      []models.JournalEntry
	sub          *Subscription
	gen          uint64
	mounted      bool
	closed       bool
	stopIdentity func()
}

func NewGate(source IdentitySource, store EntryStore, view GateView, log *zap.Logger) *Gate {
	return &Gate{source: source, store: store, view: view, log: log.Named("gate")}
}

// Mount starts listening for identity changes of token.
func (g *Gate) Mount(ctx context.Context, token string) error {
	g.mu.Lock()
	if g.mounted || g.closed {
		g.mu.Unlock()
		return ErrGateMounted
	}
	g.mounted = true
	g.ctx = ctx
	g.mu.Unlock()

	stop, err := g.source.OnIdentityChange(ctx, token, g.handleIdentity)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		stop()
		return nil
	}
	g.stopIdentity = stop
	g.mu.Unlock()
	return nil
}

// Unmount stops the identity listener and releases the entry
// subscription. It is safe to call more than once.
func (g *Gate) Unmount() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.gen++
	stop := g.stopIdentity
	sub := g.sub
	g.stopIdentity = nil
	g.sub = nil
	g.mu.Unlock()

	if stop != nil {
		stop()
	}
	sub.Unsubscribe()
}

// Identity returns the current identity, or nil.
func (g *Gate) Identity() *models.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.identity == nil {
		return nil
	}
	id := *g.identity
	return &id
}

// Entries returns the last delivered entries, newest first.
func (g *Gate) Entries() []models.JournalEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.entries)
}

func (g *Gate) handleIdentity(identity *models.Identity) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	old := g.sub
	g.sub = nil
	g.gen++
	gen := g.gen
	g.entries = nil

	if identity == nil {
		g.identity = nil
		g.view.SignedOut()
		g.mu.Unlock()
		old.Unsubscribe()
		return
	}

	id := *identity
	g.identity = &id
	ctx := g.ctx
	g.mu.Unlock()

	// The previous subscription is released before the next one opens.
	old.Unsubscribe()

	sub, err := g.store.Subscribe(ctx, id.ID, func(entries []models.JournalEntry) {
		g.deliver(gen, entries)
	})
	if err != nil {
		g.log.Error("failed to subscribe to entries", zap.String("user_id", id.ID), zap.Error(err))
		return
	}

	g.mu.Lock()
	if g.closed || g.gen != gen {
		g.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	g.sub = sub
	g.mu.Unlock()
}

func (g *Gate) deliver(gen uint64, entries []models.JournalEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.gen != gen {
		return
	}
	g.entries = entries
	g.view.Entries(slices.Clone(entries))
}
