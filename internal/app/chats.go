package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mandi/internal/util"
	"mandi/pkg/domain"
)

// StartOrResumeChat returns the single negotiation thread for a listing,
// creating it on first use. Idempotent: calling twice never creates a
// second session, enforced structurally by the listing-id key. Unknown
// listing ids are refused.
func (a *App) StartOrResumeChat(listingID, vendorID, buyerID string) (domain.ChatSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return domain.ChatSession{}, ErrNotLoaded
	}
	if !a.hasListing(listingID) {
		return domain.ChatSession{}, ErrListingNotFound
	}
	if session, ok := a.sessions[listingID]; ok {
		return cloneSession(session), nil
	}
	session := domain.ChatSession{
		ID:        util.NewID(),
		ListingID: listingID,
		VendorID:  vendorID,
		BuyerID:   buyerID,
		Messages:  []domain.Message{},
	}
	a.sessions[listingID] = session
	a.byID[session.ID] = listingID
	a.persistSessions()
	return cloneSession(session), nil
}

// SessionByID looks up a session by its own id.
func (a *App) SessionByID(sessionID string) (domain.ChatSession, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	listingID, ok := a.byID[sessionID]
	if !ok {
		return domain.ChatSession{}, false
	}
	session, ok := a.sessions[listingID]
	if !ok {
		return domain.ChatSession{}, false
	}
	return cloneSession(session), true
}

// SessionByListing looks up the session attached to a listing, if any.
func (a *App) SessionByListing(listingID string) (domain.ChatSession, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	session, ok := a.sessions[listingID]
	if !ok {
		return domain.ChatSession{}, false
	}
	return cloneSession(session), true
}

// Sessions returns all sessions.
func (a *App) Sessions() []domain.ChatSession {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]domain.ChatSession, 0, len(a.sessions))
	for _, session := range a.sessions {
		out = append(out, cloneSession(session))
	}
	return out
}

// SendMessage translates the text for the other party and appends an
// immutable message to the session log. The log is append-only; ordering is
// append order. While a translation is outstanding the session refuses a
// second submission; a failed translation never drops the message, the
// original text is used for both halves.
func (a *App) SendMessage(ctx context.Context, sessionID string, sender domain.Role, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if !sender.Valid() {
		return domain.Message{}, ErrInvalidRole
	}

	a.mu.Lock()
	if !a.loaded {
		a.mu.Unlock()
		return domain.Message{}, ErrNotLoaded
	}
	listingID, ok := a.byID[sessionID]
	if !ok {
		a.mu.Unlock()
		return domain.Message{}, ErrSessionNotFound
	}
	if a.busy[sessionID] {
		a.mu.Unlock()
		return domain.Message{}, ErrTranslationBusy
	}
	a.busy[sessionID] = true
	a.mu.Unlock()

	// Suspension point: translation runs outside the lock. The busy latch
	// above is the single-flight-per-session policy, not a general lock.
	translated := a.translate(ctx, text, sender.Other().Tongue())

	message := domain.Message{
		ID:       util.NewID(),
		SenderID: string(sender),
		Text: domain.TranslationPair{
			Original:   text,
			Translated: translated,
			Language:   sender.Tongue(),
		},
		Timestamp: time.Now().UTC(),
	}

	a.mu.Lock()
	delete(a.busy, sessionID)
	session, ok := a.sessions[listingID]
	if !ok {
		a.mu.Unlock()
		return domain.Message{}, ErrSessionNotFound
	}
	session.Messages = append(session.Messages, message)
	a.sessions[listingID] = session
	a.persistSessions()
	sessionCopy := cloneSession(session)
	a.mu.Unlock()

	a.publisher.MessageSent(sessionCopy, message)
	return message, nil
}

func (a *App) translate(ctx context.Context, text string, target domain.Language) string {
	if a.translator == nil {
		return text
	}
	out, err := a.translator.TranslateText(ctx, text, target)
	if err != nil || strings.TrimSpace(out) == "" {
		slog.Warn("message translation failed, falling back to original", "err", err)
		return text
	}
	return out
}
