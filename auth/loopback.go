package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var (
	// ErrConsentAborted is returned when the user cancels the consent prompt.
	ErrConsentAborted = errors.New("authorization aborted")

	// ErrConsentDenied is returned when the provider redirects back with an error.
	ErrConsentDenied = errors.New("authorization denied")
)

// CallbackResult is what the loopback listener received from the browser redirect.
type CallbackResult struct {
	Code string
	Err  error
}

// Prompter shows the consent URL to the user and waits for an authorization
// code, either from callbacks or typed in by the user.
type Prompter interface {
	WaitForCode(ctx context.Context, authURL string, callbacks <-chan CallbackResult) (string, error)
}

// LoopbackFlow is the default ConsentFlow. It listens on 127.0.0.1 for the
// OAuth redirect and exchanges the returned code for a token.
type LoopbackFlow struct {
	port        int
	prompter    Prompter
	openBrowser func(url string) error
	logger      *zap.SugaredLogger
}

var _ ConsentFlow = (*LoopbackFlow)(nil)

// NewLoopbackFlow creates a flow listening on port (0 picks a free port).
func NewLoopbackFlow(port int, prompter Prompter, logger *zap.SugaredLogger) *LoopbackFlow {
	return &LoopbackFlow{port: port, prompter: prompter, logger: logger}
}

// SetBrowser makes Consent hand the consent URL to open before prompting.
// A failure to open is logged and the prompt still shows the URL.
func (f *LoopbackFlow) SetBrowser(open func(url string) error) {
	f.openBrowser = open
}

func (f *LoopbackFlow) Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", f.port))
	if err != nil {
		return nil, fmt.Errorf("unable to start callback listener: %w", err)
	}

	c := *cfg
	c.RedirectURL = "http://" + ln.Addr().String()
	state := uuid.NewString()

	results := make(chan CallbackResult, 1)
	srv := &http.Server{
		Handler:           CallbackHandler(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Warnf("Auth: callback listener stopped: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Once Shutdown returns cleanly no handler can still send, so the
		// channel is closed to release a prompter still waiting on it.
		if err := srv.Shutdown(shutdownCtx); err == nil {
			close(results)
		}
	}()
	f.logger.Debugf("Auth: waiting for OAuth callback on %s", c.RedirectURL)

	authURL := c.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if f.openBrowser != nil {
		if err := f.openBrowser(authURL); err != nil {
			f.logger.Warnf("Auth: unable to open browser: %v", err)
		}
	}
	code, err := f.prompter.WaitForCode(ctx, authURL, results)
	if err != nil {
		return nil, err
	}

	tok, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}

// CallbackHandler serves the OAuth redirect. The first valid callback (a code
// with the expected state, or a provider error) is delivered on results;
// later ones are ignored.
func CallbackHandler(state string, results chan<- CallbackResult) http.Handler {
	var once sync.Once
	deliver := func(r CallbackResult) {
		once.Do(func() { results <- r })
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			deliver(CallbackResult{Err: fmt.Errorf("%w: %s", ErrConsentDenied, e)})
			fmt.Fprintln(w, "Authorization failed. You can close this window.")
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		deliver(CallbackResult{Code: code})
		fmt.Fprintln(w, "Authorization received. You can close this window.")
	})
}

// LogPrompter is used when there is no terminal: it logs the URL and waits
// for the browser redirect only.
type LogPrompter struct {
	Logger *zap.SugaredLogger
}

func (p LogPrompter) WaitForCode(ctx context.Context, authURL string, callbacks <-chan CallbackResult) (string, error) {
	p.Logger.Infof("Auth: go to the following link in your browser to authorize access:\n%s", authURL)
	select {
	case r := <-callbacks:
		return r.Code, r.Err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
