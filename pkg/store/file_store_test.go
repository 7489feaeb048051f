package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mandi/pkg/domain"
)

func TestFileSnapshotRequiresBasePath(t *testing.T) {
	if _, err := NewFileSnapshot("  "); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}

func TestFileSnapshotLoadsEmptyWhenAbsent(t *testing.T) {
	snap, err := NewFileSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	listings, err := snap.LoadListings()
	if err != nil || len(listings) != 0 {
		t.Fatalf("expected empty listings, got %d (err %v)", len(listings), err)
	}
	sessions, err := snap.LoadSessions()
	if err != nil || len(sessions) != 0 {
		t.Fatalf("expected empty sessions, got %d (err %v)", len(sessions), err)
	}
	role, err := snap.LoadRole()
	if err != nil || role != domain.DefaultRole {
		t.Fatalf("expected default role, got %q (err %v)", role, err)
	}
}

func TestFileSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap, err := NewFileSnapshot(dir)
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	listings := []domain.Listing{{
		ID:       "listing-1",
		Item:     "Tomato",
		Quantity: "50kg",
		Price:    30,
		Currency: "INR",
		Description: domain.TranslationPair{
			Original:   "ताजे टमाटर",
			Translated: "Fresh tomatoes",
			Language:   domain.LanguageHindi,
		},
		Category:  domain.CategoryVegetables,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    domain.StatusActive,
	}}
	if err := snap.SaveListings(listings); err != nil {
		t.Fatalf("save listings: %v", err)
	}
	sessions := []domain.ChatSession{{
		ID:        "chat-1",
		ListingID: "listing-1",
		VendorID:  "vendor-1",
		BuyerID:   "buyer-1",
		Messages: []domain.Message{{
			ID:        "msg-1",
			SenderID:  string(domain.RoleBuyer),
			Text:      domain.TranslationPair{Original: "Price?", Translated: "दाम?", Language: domain.LanguageEnglish},
			Timestamp: now,
		}},
	}}
	if err := snap.SaveSessions(sessions); err != nil {
		t.Fatalf("save sessions: %v", err)
	}
	if err := snap.SaveRole(domain.RoleBuyer); err != nil {
		t.Fatalf("save role: %v", err)
	}

	// Reopen to prove the records survive a restart.
	snap2, err := NewFileSnapshot(dir)
	if err != nil {
		t.Fatalf("reopen snapshot: %v", err)
	}
	gotListings, err := snap2.LoadListings()
	if err != nil {
		t.Fatalf("load listings: %v", err)
	}
	if len(gotListings) != 1 || gotListings[0].Description.Original != "ताजे टमाटर" {
		t.Fatalf("listings did not round-trip: %+v", gotListings)
	}
	gotSessions, err := snap2.LoadSessions()
	if err != nil {
		t.Fatalf("load sessions: %v", err)
	}
	if len(gotSessions) != 1 || len(gotSessions[0].Messages) != 1 {
		t.Fatalf("sessions did not round-trip: %+v", gotSessions)
	}
	role, err := snap2.LoadRole()
	if err != nil || role != domain.RoleBuyer {
		t.Fatalf("role did not round-trip: %q (err %v)", role, err)
	}
}

func TestFileSnapshotTreatsCorruptionAsEmpty(t *testing.T) {
	dir := t.TempDir()
	snap, err := NewFileSnapshot(dir)
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	for _, name := range []string{listingsFile, sessionsFile, roleFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644); err != nil {
			t.Fatalf("write corrupt file: %v", err)
		}
	}
	if listings, err := snap.LoadListings(); err != nil || len(listings) != 0 {
		t.Fatalf("corrupt listings should load empty, got %d (err %v)", len(listings), err)
	}
	if sessions, err := snap.LoadSessions(); err != nil || len(sessions) != 0 {
		t.Fatalf("corrupt sessions should load empty, got %d (err %v)", len(sessions), err)
	}
	if role, err := snap.LoadRole(); err != nil || role != domain.DefaultRole {
		t.Fatalf("corrupt role should load default, got %q (err %v)", role, err)
	}
}

func TestFileSnapshotRejectsUnknownSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	snap, err := NewFileSnapshot(dir)
	if err != nil {
		t.Fatalf("new snapshot: %v", err)
	}
	payload := []byte(`{"schemaVersion":99,"listings":[{"id":"x"}]}`)
	if err := os.WriteFile(filepath.Join(dir, listingsFile), payload, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	listings, err := snap.LoadListings()
	if err != nil || len(listings) != 0 {
		t.Fatalf("unknown schema version should load empty, got %d (err %v)", len(listings), err)
	}
}
