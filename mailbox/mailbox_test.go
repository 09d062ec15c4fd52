package mailbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthError(t *testing.T) {
	base := errors.New("401 Unauthorized")
	authErr := &AuthError{Provider: "gmail", Err: base}

	assert.True(t, IsAuthError(authErr))
	assert.True(t, IsAuthError(fmt.Errorf("unable to list messages: %w", authErr)))
	assert.ErrorIs(t, authErr, base)
	assert.False(t, IsAuthError(base))
	assert.False(t, IsAuthError(nil))
	assert.Equal(t, "auth error (gmail): 401 Unauthorized", authErr.Error())
}
