package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const sessionFile = "session.json"

// sessionRecord is the on-disk format of the token slot.
type sessionRecord struct {
	Version   int       `json:"version"`
	Token     string    `json:"token,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileTokenStore persists the token in a JSON file on the local filesystem.
type FileTokenStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileTokenStore creates a file backed token store.
// If baseDir is empty, uses ~/.murmur/
func NewFileTokenStore(baseDir string) (*FileTokenStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".murmur")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("file token store initialized")

	return &FileTokenStore{baseDir: baseDir}, nil
}

// Path returns the file holding the token.
func (s *FileTokenStore) Path() string {
	return filepath.Join(s.baseDir, sessionFile)
}

func (s *FileTokenStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidToken, s.Path(), err)
	}

	if rec.Token == "" {
		return "", ErrNoToken
	}

	return rec.Token, nil
}

func (s *FileTokenStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(sessionRecord{
		Version:   1,
		Token:     token,
		UpdatedAt: time.Now().UTC(),
	})
}

func (s *FileTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// write stores the record atomically.
func (s *FileTokenStore) write(rec sessionRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write to temp file first
	path := s.Path()
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}
