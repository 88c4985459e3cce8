package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// storedSession is the on-disk shape of a persisted session.
type storedSession struct {
	Token string         `json:"token"`
	User  map[string]any `json:"user,omitempty"`
}

// LoadFile restores a session persisted by SaveFile. A missing file yields
// an anonymous session, not an error.
func LoadFile(path string) (*Session, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var stored storedSession
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, fmt.Errorf("malformed session file %s: %w", path, err)
	}

	s := New("")
	if err := s.SetToken(stored.Token, stored.User); err != nil {
		// Expired token on disk: start anonymous rather than failing startup
		return New(""), nil
	}
	return s, nil
}

// SaveFile persists the session's token and user, owner-readable only.
func SaveFile(s *Session, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	b, err := json.MarshalIndent(storedSession{Token: s.Token(), User: s.User()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// DeleteFile removes a persisted session. Missing files are not an error.
func DeleteFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
