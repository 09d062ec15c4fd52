// Package mailbox defines the provider surface the poll cycle depends on.
package mailbox

import (
	"context"
	"errors"
	"fmt"
)

// MaxCandidates caps how many matching messages a single search returns.
const MaxCandidates = 5

// Query selects unread messages from one sender with one subject.
type Query struct {
	From    string
	Subject string
	Limit   int64
}

// Mailbox searches for unread messages and marks them read.
type Mailbox interface {
	// Search returns the ids of unread messages matching q, in provider order.
	Search(ctx context.Context, q Query) ([]string, error)

	// MarkRead clears the unread state of the message with the given id.
	MarkRead(ctx context.Context, id string) error
}

// AuthError indicates that the provider rejected the credential, e.g. an
// expired or revoked refresh token.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
