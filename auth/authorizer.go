package auth

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// State is the authorization state of an Authorizer.
type State int

const (
	Unauthorized State = iota
	Authorized
)

func (s State) String() string {
	if s == Authorized {
		return "authorized"
	}
	return "unauthorized"
}

// ConsentFlow obtains the first token interactively. It is only used when no
// credential has been stored.
type ConsentFlow interface {
	Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// Authorizer produces a token source for the Gmail API, from the stored
// credential when there is one and from a ConsentFlow otherwise.
type Authorizer struct {
	store           Store
	credentialsPath string
	scopes          []string
	consent         ConsentFlow
	logger          *zap.SugaredLogger

	mu    sync.Mutex
	state State
}

func NewAuthorizer(store Store, credentialsPath string, scopes []string, consent ConsentFlow, logger *zap.SugaredLogger) *Authorizer {
	return &Authorizer{
		store:           store,
		credentialsPath: credentialsPath,
		scopes:          scopes,
		consent:         consent,
		logger:          logger,
	}
}

// State reports whether Authorize has succeeded.
func (a *Authorizer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Authorize returns a token source. A stored credential is used as-is with no
// network call; the first access token is fetched lazily. Otherwise the
// consent flow runs and any refresh token it yields is persisted. An error
// from the consent flow is returned and leaves the Authorizer Unauthorized.
func (a *Authorizer) Authorize(ctx context.Context) (oauth2.TokenSource, error) {
	rec, err := a.store.Load()
	if err == nil {
		a.logger.Infof("Auth: using stored credential from %s", a.store.Location())
		cfg := &oauth2.Config{
			ClientID:     rec.ClientID,
			ClientSecret: rec.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       a.scopes,
		}
		ts := a.tokenSource(ctx, cfg, &oauth2.Token{RefreshToken: rec.RefreshToken}, rec.Identity())
		a.setState(Authorized)
		return ts, nil
	}
	a.logger.Infof("Auth: token not found or invalid (%v), starting interactive authorization", err)

	b, err := os.ReadFile(a.credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, a.scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	tok, err := a.consent.Consent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("interactive authorization failed: %w", err)
	}

	fallback := ClientIdentity{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}
	if tok.RefreshToken != "" {
		a.persist(tok.RefreshToken, fallback)
	} else {
		a.logger.Warnf("Auth: no refresh token was issued; authorization will be requested again on next start")
	}

	ts := a.tokenSource(ctx, cfg, tok, fallback)
	a.setState(Authorized)
	return ts, nil
}

func (a *Authorizer) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// persist stores a refresh token together with the client identity read from
// the credentials file. Failures are logged only.
func (a *Authorizer) persist(refreshToken string, fallback ClientIdentity) {
	id, err := LoadClientIdentity(a.credentialsPath)
	if err != nil {
		if fallback.ClientID == "" {
			a.logger.Errorf("Auth: error saving credentials: %v", err)
			return
		}
		a.logger.Warnf("Auth: %v; saving with the client identity in use", err)
		id = fallback
	}
	if err := a.store.Save(NewRecord(id, refreshToken)); err != nil {
		a.logger.Errorf("Auth: error saving credentials: %v", err)
		return
	}
	a.logger.Infof("Auth: token stored to %s", a.store.Location())
}

func (a *Authorizer) tokenSource(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, id ClientIdentity) oauth2.TokenSource {
	// Refreshes must keep working while an in-flight cycle finishes after shutdown.
	return &persistingTokenSource{
		base:    cfg.TokenSource(context.WithoutCancel(ctx), tok),
		refresh: tok.RefreshToken,
		onRotate: func(t *oauth2.Token) {
			a.logger.Infof("Auth: provider issued a new refresh token")
			a.persist(t.RefreshToken, id)
		},
	}
}

// persistingTokenSource calls onRotate whenever the wrapped source hands out a
// refresh token different from the last one seen.
type persistingTokenSource struct {
	base     oauth2.TokenSource
	onRotate func(*oauth2.Token)

	mu      sync.Mutex
	refresh string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	rotated := tok.RefreshToken != "" && tok.RefreshToken != s.refresh
	if rotated {
		s.refresh = tok.RefreshToken
	}
	s.mu.Unlock()

	if rotated && s.onRotate != nil {
		s.onRotate(tok)
	}
	return tok, nil
}
