// Package app is the bilingual listing/chat session engine. It owns the
// in-memory working set (listing collection, chat session directory, active
// role), keeps it consistent with a persisted snapshot, and degrades
// gracefully when its external collaborators fail.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"mandi/pkg/ai"
	"mandi/pkg/domain"
	"mandi/pkg/events"
	"mandi/pkg/store"
)

const fallbackInsight = "Market conditions appear stable based on historical data."

// Config wires the engine's collaborators. Snapshot is required; the rest
// are optional and degrade to no-ops or fallbacks.
type Config struct {
	Snapshot   store.Snapshot
	Translator ai.Translator
	Extractor  ai.Extractor
	Insighter  ai.Insighter
	Publisher  *events.Publisher
}

// App is the core engine. All mutations are serialised behind one mutex;
// the only suspension point is the translation call, which runs outside
// the lock with a per-session busy latch.
type App struct {
	mu         sync.RWMutex
	snap       store.Snapshot
	translator ai.Translator
	extractor  ai.Extractor
	insighter  ai.Insighter
	publisher  *events.Publisher

	listings []domain.Listing
	sessions map[string]domain.ChatSession // keyed by listing id
	byID     map[string]string             // session id -> listing id
	role     domain.Role
	busy     map[string]bool // session id -> translation outstanding

	insightFlight singleflight.Group

	// loaded is the load-before-save latch, set exactly once in New after
	// the initial snapshot read. Saving before it is set would overwrite a
	// not-yet-read snapshot with empty state.
	loaded bool
}

// New loads the persisted snapshot and returns a ready engine. Load
// failures are absorbed by the snapshot backends (empty collections,
// default role); New itself fails only on missing wiring.
func New(cfg Config) (*App, error) {
	if cfg.Snapshot == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	a := &App{
		snap:       cfg.Snapshot,
		translator: cfg.Translator,
		extractor:  cfg.Extractor,
		insighter:  cfg.Insighter,
		publisher:  cfg.Publisher,
		sessions:   make(map[string]domain.ChatSession),
		byID:       make(map[string]string),
		busy:       make(map[string]bool),
	}

	listings, err := a.snap.LoadListings()
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}
	a.listings = listings

	sessions, err := a.snap.LoadSessions()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for _, session := range sessions {
		if _, dup := a.sessions[session.ListingID]; dup {
			// The at-most-one invariant is structural from here on; a
			// snapshot written by older code keeps only the first thread.
			slog.Warn("dropping duplicate session for listing", "listing_id", session.ListingID, "session_id", session.ID)
			continue
		}
		a.sessions[session.ListingID] = session
		a.byID[session.ID] = session.ListingID
	}

	role, err := a.snap.LoadRole()
	if err != nil {
		return nil, fmt.Errorf("load role: %w", err)
	}
	if !role.Valid() {
		role = domain.DefaultRole
	}
	a.role = role

	a.loaded = true
	return a, nil
}

// Role returns the persisted active role.
func (a *App) Role() domain.Role {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.role
}

// SetRole switches the active role and persists the flag.
func (a *App) SetRole(role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return ErrNotLoaded
	}
	a.role = role
	a.persistRole()
	return nil
}

// MarketInsight asks the collaborator for a one-line commentary.
// Concurrent requests for the same item share one upstream call; any
// failure degrades to a canned sentence.
func (a *App) MarketInsight(ctx context.Context, item string) string {
	if a.insighter == nil {
		return fallbackInsight
	}
	out, err, _ := a.insightFlight.Do(item, func() (any, error) {
		return a.insighter.MarketInsight(ctx, item)
	})
	if err != nil {
		slog.Warn("market insight failed, using fallback", "item", item, "err", err)
		return fallbackInsight
	}
	insight, _ := out.(string)
	if insight == "" {
		return fallbackInsight
	}
	return insight
}

// Persistence is best-effort: failures are logged and swallowed, and the
// in-memory state stays authoritative for the session. Callers hold a.mu.

func (a *App) persistListings() {
	if !a.loaded {
		slog.Error("listing save refused before initial load")
		return
	}
	snapshot := make([]domain.Listing, len(a.listings))
	copy(snapshot, a.listings)
	if err := a.snap.SaveListings(snapshot); err != nil {
		slog.Warn("persist listings", "err", err)
	}
}

func (a *App) persistSessions() {
	if !a.loaded {
		slog.Error("session save refused before initial load")
		return
	}
	snapshot := make([]domain.ChatSession, 0, len(a.sessions))
	for _, listing := range a.listings {
		if session, ok := a.sessions[listing.ID]; ok {
			snapshot = append(snapshot, cloneSession(session))
		}
	}
	// Sessions for listings that never loaded (weak cross-record
	// consistency) still persist, after the ordered ones.
	for listingID, session := range a.sessions {
		if !a.hasListing(listingID) {
			snapshot = append(snapshot, cloneSession(session))
		}
	}
	if err := a.snap.SaveSessions(snapshot); err != nil {
		slog.Warn("persist sessions", "err", err)
	}
}

func (a *App) persistRole() {
	if !a.loaded {
		slog.Error("role save refused before initial load")
		return
	}
	if err := a.snap.SaveRole(a.role); err != nil {
		slog.Warn("persist role", "err", err)
	}
}

func (a *App) hasListing(id string) bool {
	for _, listing := range a.listings {
		if listing.ID == id {
			return true
		}
	}
	return false
}

func cloneSession(session domain.ChatSession) domain.ChatSession {
	out := session
	out.Messages = make([]domain.Message, len(session.Messages))
	copy(out.Messages, session.Messages)
	return out
}
