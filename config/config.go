package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/spf13/viper"
)

// Environment keys recognized by Load.
const (
	KeySender          = "ALLOWED_SENDER_EMAIL"
	KeySubject         = "EXPECTED_SUBJECT"
	KeyCommand         = "COMMAND_TO_RUN"
	KeyInterval        = "CHECK_INTERVAL_MS"
	KeyScopes          = "GMAIL_SCOPES"
	KeyTokenPath       = "TOKEN_PATH"
	KeyCredentialsPath = "CREDENTIALS_PATH"
	KeyTokenStore      = "TOKEN_STORE"
	KeyKeyringDir      = "KEYRING_DIR"
	KeyCallbackPort    = "OAUTH_CALLBACK_PORT"
	KeyOpenBrowser     = "OAUTH_OPEN_BROWSER"
	KeyProvider        = "MAIL_PROVIDER"
	KeyIMAPHost        = "IMAP_HOST"
	KeyIMAPPort        = "IMAP_PORT"
	KeyIMAPUsername    = "IMAP_USERNAME"
	KeyIMAPPassword    = "IMAP_PASSWORD"
	KeyIMAPMailbox     = "IMAP_MAILBOX"
	KeyIMAPTLS         = "IMAP_TLS"
	KeyHistoryDB       = "HISTORY_DB"
	KeyDesktopNotify   = "DESKTOP_NOTIFY"
	KeyLogLevel        = "LOG_LEVEL"
	KeyLogFile         = "LOG_FILE"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"

	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"

	// DefaultScope allows both searching and removing the UNREAD label.
	DefaultScope = "https://www.googleapis.com/auth/gmail.modify"
)

// ErrMissingRequired is returned by Validate when the filter or command is not configured.
var ErrMissingRequired = errors.New("missing required configuration")

// IMAP holds the settings for the IMAP mailbox backend.
type IMAP struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	TLS      bool
}

// Addr returns host:port.
func (i IMAP) Addr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// Config is the process-wide configuration. It is read once at startup and never mutated.
type Config struct {
	Sender  string
	Subject string
	Command string

	Interval time.Duration
	Scopes   []string

	TokenPath       string
	CredentialsPath string
	TokenStore      string
	KeyringDir      string
	CallbackPort    int
	OpenBrowser     bool

	Provider string
	IMAP     IMAP

	HistoryDB     string
	DesktopNotify bool

	LogLevel string
	LogFile  string
}

// Load reads the configuration from the process environment. It applies defaults
// but does not validate; call Validate before using the result.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(KeyInterval, 60000)
	v.SetDefault(KeyScopes, DefaultScope)
	v.SetDefault(KeyTokenPath, "token.json")
	v.SetDefault(KeyCredentialsPath, "credentials.json")
	v.SetDefault(KeyTokenStore, TokenStoreFile)
	v.SetDefault(KeyKeyringDir, defaultKeyringDir())
	v.SetDefault(KeyCallbackPort, 0)
	v.SetDefault(KeyOpenBrowser, true)
	v.SetDefault(KeyProvider, ProviderGmail)
	v.SetDefault(KeyIMAPPort, 993)
	v.SetDefault(KeyIMAPMailbox, "INBOX")
	v.SetDefault(KeyIMAPTLS, true)
	v.SetDefault(KeyDesktopNotify, false)
	v.SetDefault(KeyLogLevel, "info")

	tokenPath, err := filepath.Abs(v.GetString(KeyTokenPath))
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %s: %w", KeyTokenPath, err)
	}
	credentialsPath, err := filepath.Abs(v.GetString(KeyCredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %s: %w", KeyCredentialsPath, err)
	}

	cfg := &Config{
		Sender:          normalizeSender(v.GetString(KeySender)),
		Subject:         strings.TrimSpace(v.GetString(KeySubject)),
		Command:         strings.TrimSpace(v.GetString(KeyCommand)),
		Interval:        time.Duration(v.GetInt64(KeyInterval)) * time.Millisecond,
		Scopes:          splitScopes(v.GetString(KeyScopes)),
		TokenPath:       tokenPath,
		CredentialsPath: credentialsPath,
		TokenStore:      strings.ToLower(v.GetString(KeyTokenStore)),
		KeyringDir:      v.GetString(KeyKeyringDir),
		CallbackPort:    v.GetInt(KeyCallbackPort),
		OpenBrowser:     v.GetBool(KeyOpenBrowser),
		Provider:        strings.ToLower(v.GetString(KeyProvider)),
		IMAP: IMAP{
			Host:     v.GetString(KeyIMAPHost),
			Port:     v.GetInt(KeyIMAPPort),
			Username: v.GetString(KeyIMAPUsername),
			Password: v.GetString(KeyIMAPPassword),
			Mailbox:  v.GetString(KeyIMAPMailbox),
			TLS:      v.GetBool(KeyIMAPTLS),
		},
		HistoryDB:     v.GetString(KeyHistoryDB),
		DesktopNotify: v.GetBool(KeyDesktopNotify),
		LogLevel:      v.GetString(KeyLogLevel),
		LogFile:       v.GetString(KeyLogFile),
	}
	return cfg, nil
}

// Validate checks that the configuration is usable. A missing sender, subject or
// command yields an error wrapping ErrMissingRequired.
func (c *Config) Validate() error {
	var missing []string
	if c.Sender == "" {
		missing = append(missing, KeySender)
	}
	if c.Subject == "" {
		missing = append(missing, KeySubject)
	}
	if c.Command == "" {
		missing = append(missing, KeyCommand)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: please configure %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	if c.Interval <= 0 {
		return fmt.Errorf("%s must be a positive number of milliseconds", KeyInterval)
	}

	switch c.Provider {
	case ProviderGmail:
		if len(c.Scopes) == 0 {
			return fmt.Errorf("%s must name at least one scope", KeyScopes)
		}
		if c.TokenStore != TokenStoreFile && c.TokenStore != TokenStoreKeyring {
			return fmt.Errorf("%s must be %q or %q", KeyTokenStore, TokenStoreFile, TokenStoreKeyring)
		}
	case ProviderIMAP:
		if c.IMAP.Host == "" || c.IMAP.Username == "" {
			return fmt.Errorf("%s and %s are required for the imap provider", KeyIMAPHost, KeyIMAPUsername)
		}
		if c.IMAP.Port <= 0 {
			return fmt.Errorf("%s must be a valid port", KeyIMAPPort)
		}
	default:
		return fmt.Errorf("%s must be %q or %q", KeyProvider, ProviderGmail, ProviderIMAP)
	}
	return nil
}

// normalizeSender reduces "Alerts <alerts@example.com>" to the bare address.
// Anything that does not parse is kept as written.
func normalizeSender(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return raw
	}
	return addr.Address
}

func splitScopes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	scopes := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			scopes = append(scopes, f)
		}
	}
	return scopes
}

func defaultKeyringDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".keyring")
	}
	return filepath.Join(home, ".config", "mailcmd", "keyring")
}
