package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(KeySender, "alerts@example.com")
	t.Setenv(KeySubject, "Run Backup")
	t.Setenv(KeyCommand, "echo ok")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "alerts@example.com", cfg.Sender)
	assert.Equal(t, "Run Backup", cfg.Subject)
	assert.Equal(t, "echo ok", cfg.Command)
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, []string{DefaultScope}, cfg.Scopes)
	assert.Equal(t, "token.json", filepath.Base(cfg.TokenPath))
	assert.True(t, filepath.IsAbs(cfg.TokenPath))
	assert.Equal(t, "credentials.json", filepath.Base(cfg.CredentialsPath))
	assert.Equal(t, ProviderGmail, cfg.Provider)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)
	assert.Equal(t, 993, cfg.IMAP.Port)
	assert.True(t, cfg.IMAP.TLS)
	assert.False(t, cfg.DesktopNotify)
	assert.Empty(t, cfg.HistoryDB)
	assert.True(t, cfg.OpenBrowser)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv(KeyInterval, "1500")
	t.Setenv(KeyScopes, "scope-a, scope-b scope-c")
	t.Setenv(KeyTokenPath, "state/tok.json")
	t.Setenv(KeyProvider, "IMAP")
	t.Setenv(KeyIMAPHost, "imap.example.com")
	t.Setenv(KeyIMAPUsername, "me@example.com")
	t.Setenv(KeyIMAPTLS, "false")
	t.Setenv(KeyDesktopNotify, "true")
	t.Setenv(KeyOpenBrowser, "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1500*time.Millisecond, cfg.Interval)
	assert.Equal(t, []string{"scope-a", "scope-b", "scope-c"}, cfg.Scopes)
	assert.True(t, strings.HasSuffix(cfg.TokenPath, filepath.Join("state", "tok.json")))
	assert.Equal(t, ProviderIMAP, cfg.Provider)
	assert.Equal(t, "imap.example.com:993", cfg.IMAP.Addr())
	assert.False(t, cfg.IMAP.TLS)
	assert.True(t, cfg.DesktopNotify)
	assert.False(t, cfg.OpenBrowser)
}

func TestSenderDisplayNameIsStripped(t *testing.T) {
	setRequired(t)
	t.Setenv(KeySender, "Backup Alerts <alerts@example.com>")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "alerts@example.com", cfg.Sender)
}

func TestValidateMissingRequired(t *testing.T) {
	cases := map[string]string{
		"sender":  KeySender,
		"subject": KeySubject,
		"command": KeyCommand,
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(key, "")

			cfg, err := Load()
			require.NoError(t, err)

			err = cfg.Validate()
			require.ErrorIs(t, err, ErrMissingRequired)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"zero interval":    {KeyInterval: "0"},
		"garbage interval": {KeyInterval: "soon"},
		"unknown provider": {KeyProvider: "pop3"},
		"unknown store":    {KeyTokenStore: "vault"},
		"imap without host": {
			KeyProvider:     ProviderIMAP,
			KeyIMAPUsername: "me",
		},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			require.NoError(t, err)

			err = cfg.Validate()
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrMissingRequired)
		})
	}
}
