package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bassamadnan/mailcmd/auth"
)

// waitForCallbackCmd blocks on the loopback listener and reports its result.
func waitForCallbackCmd(callbacks <-chan auth.CallbackResult) tea.Cmd {
	if callbacks == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-callbacks
		if !ok {
			return callbacksClosedMsg{}
		}
		return CallbackMsg(r)
	}
}
