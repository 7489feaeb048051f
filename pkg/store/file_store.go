package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mandi/pkg/domain"
)

const (
	listingsFile = "listings.json"
	sessionsFile = "chats.json"
	roleFile     = "role.json"
)

// FileSnapshot persists each record as a JSON file under a base directory.
// Writes go through a temp file and rename so a crash mid-write leaves the
// previous record intact.
type FileSnapshot struct {
	basePath string
}

// NewFileSnapshot creates the base directory if missing.
func NewFileSnapshot(basePath string) (*FileSnapshot, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("snapshot base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshot{basePath: basePath}, nil
}

func (f *FileSnapshot) LoadListings() ([]domain.Listing, error) {
	data, ok := f.read(listingsFile)
	if !ok {
		return []domain.Listing{}, nil
	}
	listings, ok := decodeListings(data)
	if !ok {
		slog.Warn("unreadable listings snapshot, starting empty", "file", listingsFile)
		return []domain.Listing{}, nil
	}
	return listings, nil
}

func (f *FileSnapshot) SaveListings(listings []domain.Listing) error {
	data, err := encodeListings(listings)
	if err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}
	return f.write(listingsFile, data)
}

func (f *FileSnapshot) LoadSessions() ([]domain.ChatSession, error) {
	data, ok := f.read(sessionsFile)
	if !ok {
		return []domain.ChatSession{}, nil
	}
	sessions, ok := decodeSessions(data)
	if !ok {
		slog.Warn("unreadable sessions snapshot, starting empty", "file", sessionsFile)
		return []domain.ChatSession{}, nil
	}
	return sessions, nil
}

func (f *FileSnapshot) SaveSessions(sessions []domain.ChatSession) error {
	data, err := encodeSessions(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return f.write(sessionsFile, data)
}

func (f *FileSnapshot) LoadRole() (domain.Role, error) {
	data, ok := f.read(roleFile)
	if !ok {
		return domain.DefaultRole, nil
	}
	role, ok := decodeRole(data)
	if !ok {
		slog.Warn("unreadable role snapshot, using default", "file", roleFile)
		return domain.DefaultRole, nil
	}
	return role, nil
}

func (f *FileSnapshot) SaveRole(role domain.Role) error {
	data, err := encodeRole(role)
	if err != nil {
		return fmt.Errorf("encode role: %w", err)
	}
	return f.write(roleFile, data)
}

func (f *FileSnapshot) read(name string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(f.basePath, name))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("read snapshot file", "file", name, "err", err)
		}
		return nil, false
	}
	return data, true
}

func (f *FileSnapshot) write(name string, data []byte) error {
	target := filepath.Join(f.basePath, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}
