package util

import "github.com/google/uuid"

// NewID returns a fresh UUID string. Listing, session, and message ids all
// come from here so the uniqueness guarantee has a single owner.
func NewID() string {
	return uuid.NewString()
}
