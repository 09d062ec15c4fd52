package tui

import "github.com/bassamadnan/mailcmd/auth"

// CallbackMsg carries the result delivered by the loopback listener.
type CallbackMsg auth.CallbackResult

// Message to signal that the callback channel was closed without a result.
type callbacksClosedMsg struct{}
