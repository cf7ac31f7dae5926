// Package storage persists the auth session across process restarts. Only
// the session survives a restart; cached data never does and is rebuilt
// from network responses.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"admincore/domain/session"
)

// FileSessionStore keeps the current session in a JSON file with owner-only
// permissions. Writes are atomic (temp file + rename) so a crash mid-write
// never leaves a truncated session behind.
type FileSessionStore struct {
	path   string
	logger *zap.Logger
}

// NewFileSessionStore creates a session store at path, creating parent
// directories as needed
func NewFileSessionStore(path string, logger *zap.Logger) (*FileSessionStore, error) {
	if path == "" {
		return nil, fmt.Errorf("session store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session store directory: %w", err)
	}
	return &FileSessionStore{path: path, logger: logger}, nil
}

// Save persists the session
func (s *FileSessionStore) Save(sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	s.logger.Debug("Session persisted", zap.String("path", s.path))
	return nil
}

// Load reads the persisted session. found is false when no session has been
// saved; a corrupt file is treated as an error, not an empty session.
func (s *FileSessionStore) Load() (session.Session, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return session.Session{}, false, nil
	}
	if err != nil {
		return session.Session{}, false, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, false, fmt.Errorf("corrupt session file: %w", err)
	}
	return sess, true, nil
}

// Wipe removes the persisted session. Wiping an absent session is a no-op.
func (s *FileSessionStore) Wipe() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
