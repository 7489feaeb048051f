package app

import "errors"

var (
	// ErrNotLoaded guards the load-before-save gate: no mutation is
	// accepted before the initial snapshot load has completed.
	ErrNotLoaded = errors.New("engine not loaded")
	// ErrListingExists rejects a duplicate listing id.
	ErrListingExists = errors.New("listing already exists")
	ErrListingNotFound  = errors.New("listing not found")
	ErrInvalidListing   = errors.New("invalid listing")
	ErrSessionNotFound  = errors.New("chat session not found")
	ErrInvalidRole      = errors.New("invalid role")
	ErrEmptyMessage     = errors.New("message text required")
	// ErrTranslationBusy rejects a second submission on a session while a
	// translation is still outstanding.
	ErrTranslationBusy = errors.New("translation in flight for session")
)
