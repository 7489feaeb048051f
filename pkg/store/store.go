package store

import (
	"encoding/json"

	"mandi/pkg/domain"
)

// SchemaVersion is stamped into every persisted record. Loaders treat an
// unknown version the same as corruption: empty result, never an error.
const SchemaVersion = 1

// Snapshot persists the three engine records: the listing collection, the
// chat session collection, and the active-role scalar. Each record is
// independent; there is no cross-record transaction, so a crash between two
// saves can leave them mutually inconsistent.
//
// Load methods return empty collections (or the default role) when the
// record is absent or unreadable. Save errors are reported so the caller
// can log them; in-memory state remains authoritative either way.
type Snapshot interface {
	LoadListings() ([]domain.Listing, error)
	SaveListings([]domain.Listing) error

	LoadSessions() ([]domain.ChatSession, error)
	SaveSessions([]domain.ChatSession) error

	LoadRole() (domain.Role, error)
	SaveRole(domain.Role) error
}

type listingsRecord struct {
	SchemaVersion int              `json:"schemaVersion"`
	Listings      []domain.Listing `json:"listings"`
}

type sessionsRecord struct {
	SchemaVersion int                  `json:"schemaVersion"`
	Sessions      []domain.ChatSession `json:"sessions"`
}

type roleRecord struct {
	SchemaVersion int         `json:"schemaVersion"`
	Role          domain.Role `json:"role"`
}

func encodeListings(listings []domain.Listing) ([]byte, error) {
	return json.Marshal(listingsRecord{SchemaVersion: SchemaVersion, Listings: listings})
}

func decodeListings(data []byte) ([]domain.Listing, bool) {
	var rec listingsRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.SchemaVersion != SchemaVersion {
		return nil, false
	}
	return rec.Listings, true
}

func encodeSessions(sessions []domain.ChatSession) ([]byte, error) {
	return json.Marshal(sessionsRecord{SchemaVersion: SchemaVersion, Sessions: sessions})
}

func decodeSessions(data []byte) ([]domain.ChatSession, bool) {
	var rec sessionsRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.SchemaVersion != SchemaVersion {
		return nil, false
	}
	return rec.Sessions, true
}

func encodeRole(role domain.Role) ([]byte, error) {
	return json.Marshal(roleRecord{SchemaVersion: SchemaVersion, Role: role})
}

func decodeRole(data []byte) (domain.Role, bool) {
	var rec roleRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.SchemaVersion != SchemaVersion {
		return "", false
	}
	if !rec.Role.Valid() {
		return "", false
	}
	return rec.Role, true
}
