package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists the refresh credential between runs.
type Store interface {
	// Load returns the stored record. A missing record yields an error
	// wrapping ErrNoCredential, an unusable one ErrInvalidRecord.
	Load() (*Record, error)

	// Save overwrites the stored record.
	Save(rec *Record) error

	// Location describes where records are kept, for log messages.
	Location() string
}

// FileStore keeps the record as a JSON file, token.json by default.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Location() string { return s.path }

func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoCredential, s.path)
		}
		return nil, fmt.Errorf("unable to read token file: %w", err)
	}
	return decodeRecord(data)
}

func (s *FileStore) Save(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("unable to save oauth token: %w", err)
	}
	return nil
}
