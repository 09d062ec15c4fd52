package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	keyringService = "mailcmd"
	keyringItem    = "gmail-refresh-token"
)

// KeyringStore keeps the record in the OS credential store instead of a
// plain file.
type KeyringStore struct {
	ring keyring.Keyring
}

var _ Store = (*KeyringStore)(nil)

// OpenKeyring opens the first available backend. fileDir is used by the
// encrypted-file fallback.
func OpenKeyring(fileDir string) (*KeyringStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailcmd-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) Location() string {
	return "keyring " + keyringService + "/" + keyringItem
}

func (s *KeyringStore) Load() (*Record, error) {
	item, err := s.ring.Get(keyringItem)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoCredential, s.Location())
		}
		return nil, fmt.Errorf("getting credential %q: %w", keyringItem, err)
	}
	return decodeRecord(item.Data)
}

func (s *KeyringStore) Save(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:   keyringItem,
		Data:  data,
		Label: "mailcmd Gmail refresh token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", keyringItem, err)
	}
	return nil
}
