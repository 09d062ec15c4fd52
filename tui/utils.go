package tui

import (
	"net/url"
	"strings"
)

// truncate shortens a string to a max length, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// extractCode accepts either a bare authorization code or the full redirect
// URL copied from the browser's address bar. wantState is only checked for URLs.
func extractCode(input, wantState string) (code string, ok bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	if !strings.Contains(input, "://") {
		return input, true
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", false
	}
	q := u.Query()
	if wantState != "" && q.Get("state") != wantState {
		return "", false
	}
	code = q.Get("code")
	return code, code != ""
}

// stateOf returns the state parameter embedded in an authorization URL.
func stateOf(authURL string) string {
	u, err := url.Parse(authURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("state")
}
