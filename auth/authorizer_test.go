package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type fakeConsent struct {
	calls int
	cfg   *oauth2.Config
	tok   *oauth2.Token
	err   error
}

func (f *fakeConsent) Consent(_ context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	f.calls++
	f.cfg = cfg
	return f.tok, f.err
}

func writeCredentials(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(testCredentials), 0o600))
	return path
}

func liveToken(refresh string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access",
		TokenType:    "Bearer",
		RefreshToken: refresh,
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestAuthorizeWithStoredCredentialSkipsConsent(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(NewRecord(ClientIdentity{ClientID: "cid", ClientSecret: "shh"}, "stored")))

	consent := &fakeConsent{err: errors.New("must not be called")}
	// The credentials file does not exist; a stored credential must not need it.
	a := NewAuthorizer(store, filepath.Join(t.TempDir(), "missing.json"), []string{"scope"}, consent, zap.NewNop().Sugar())
	assert.Equal(t, Unauthorized, a.State())

	ts, err := a.Authorize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Zero(t, consent.calls)
	assert.Equal(t, Authorized, a.State())
}

func TestAuthorizeRunsConsentAndPersists(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	consent := &fakeConsent{tok: liveToken("fresh")}
	a := NewAuthorizer(store, writeCredentials(t), []string{"scope"}, consent, zap.NewNop().Sugar())

	ts, err := a.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, consent.calls)
	assert.Equal(t, "cid.apps.googleusercontent.com", consent.cfg.ClientID)
	assert.Equal(t, []string{"scope"}, consent.cfg.Scopes)
	assert.Equal(t, Authorized, a.State())

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, NewRecord(ClientIdentity{ClientID: "cid.apps.googleusercontent.com", ClientSecret: "shh"}, "fresh"), rec)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "access", tok.AccessToken)
}

func TestAuthorizeMalformedTokenFallsBackToConsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	consent := &fakeConsent{tok: liveToken("fresh")}
	a := NewAuthorizer(NewFileStore(path), writeCredentials(t), []string{"scope"}, consent, zap.NewNop().Sugar())

	_, err := a.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, consent.calls)
}

func TestAuthorizeConsentFailure(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	consent := &fakeConsent{err: ErrConsentAborted}
	a := NewAuthorizer(store, writeCredentials(t), []string{"scope"}, consent, zap.NewNop().Sugar())

	_, err := a.Authorize(context.Background())
	require.ErrorIs(t, err, ErrConsentAborted)
	assert.Equal(t, Unauthorized, a.State())

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestAuthorizeMissingCredentialsFile(t *testing.T) {
	consent := &fakeConsent{tok: liveToken("fresh")}
	a := NewAuthorizer(NewFileStore(filepath.Join(t.TempDir(), "token.json")),
		filepath.Join(t.TempDir(), "credentials.json"), []string{"scope"}, consent, zap.NewNop().Sugar())

	_, err := a.Authorize(context.Background())
	require.Error(t, err)
	assert.Zero(t, consent.calls)
}

func TestAuthorizeWithoutRefreshTokenDoesNotPersist(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	consent := &fakeConsent{tok: liveToken("")}
	a := NewAuthorizer(store, writeCredentials(t), []string{"scope"}, consent, zap.NewNop().Sugar())

	_, err := a.Authorize(context.Background())
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoCredential)
}

type sequenceSource struct {
	toks []*oauth2.Token
	i    int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	tok := s.toks[s.i]
	if s.i < len(s.toks)-1 {
		s.i++
	}
	return tok, nil
}

func TestPersistingTokenSourceReportsRotation(t *testing.T) {
	var rotated []string
	ts := &persistingTokenSource{
		base: &sequenceSource{toks: []*oauth2.Token{
			liveToken("r1"), liveToken("r1"), liveToken(""), liveToken("r2"),
		}},
		refresh:  "r1",
		onRotate: func(t *oauth2.Token) { rotated = append(rotated, t.RefreshToken) },
	}

	for i := 0; i < 4; i++ {
		_, err := ts.Token()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"r2"}, rotated)
}

func TestRotationIsSaved(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	a := NewAuthorizer(store, filepath.Join(t.TempDir(), "missing.json"), nil, nil, zap.NewNop().Sugar())

	// Without a credentials file the identity the token source was built with is used.
	a.persist("rotated", ClientIdentity{ClientID: "cid", ClientSecret: "shh"})

	rec, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "rotated", rec.RefreshToken)
	assert.Equal(t, "cid", rec.ClientID)
}
