package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// RecordType marks a persisted record as a user refresh credential.
const RecordType = "authorized_user"

var (
	// ErrNoCredential means no credential has been persisted yet.
	ErrNoCredential = errors.New("no stored credential")

	// ErrInvalidRecord means a persisted credential exists but cannot be used.
	ErrInvalidRecord = errors.New("invalid stored credential")
)

// Record is the persisted refresh credential, in the same shape Google's
// client libraries use for authorized_user files.
type Record struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// ClientIdentity is the OAuth client the user authorizes.
type ClientIdentity struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// NewRecord merges a client identity with a refresh token.
func NewRecord(id ClientIdentity, refreshToken string) *Record {
	return &Record{
		Type:         RecordType,
		ClientID:     id.ClientID,
		ClientSecret: id.ClientSecret,
		RefreshToken: refreshToken,
	}
}

// Identity returns the client identity stored in the record.
func (r *Record) Identity() ClientIdentity {
	return ClientIdentity{ClientID: r.ClientID, ClientSecret: r.ClientSecret}
}

// Validate rejects records that could not produce an access token.
func (r *Record) Validate() error {
	if r.Type != RecordType {
		return fmt.Errorf("%w: unexpected type %q", ErrInvalidRecord, r.Type)
	}
	if r.ClientID == "" || r.RefreshToken == "" {
		return fmt.Errorf("%w: client_id and refresh_token are required", ErrInvalidRecord)
	}
	return nil
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LoadClientIdentity reads the application credential file downloaded from the
// Google Cloud console. Both "installed" and "web" client types are accepted.
func LoadClientIdentity(path string) (ClientIdentity, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ClientIdentity{}, fmt.Errorf("unable to read client secret file: %w", err)
	}
	return parseClientIdentity(b)
}

func parseClientIdentity(b []byte) (ClientIdentity, error) {
	var keys struct {
		Installed *ClientIdentity `json:"installed"`
		Web       *ClientIdentity `json:"web"`
	}
	if err := json.Unmarshal(b, &keys); err != nil {
		return ClientIdentity{}, fmt.Errorf("unable to parse client secret file: %w", err)
	}
	key := keys.Installed
	if key == nil {
		key = keys.Web
	}
	if key == nil || key.ClientID == "" {
		return ClientIdentity{}, errors.New("client secret file has no installed or web client")
	}
	return *key, nil
}
