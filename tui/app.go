// Package tui holds the interactive terminal surfaces: the startup banner and
// the OAuth consent prompt.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bassamadnan/mailcmd/auth"
	"github.com/bassamadnan/mailcmd/config"
)

const maxBannerValue = 60

// ConsentPrompt implements auth.Prompter with a bubbletea program.
// Input and Output default to the terminal when nil.
type ConsentPrompt struct {
	Input  io.Reader
	Output io.Writer
}

var _ auth.Prompter = ConsentPrompt{}

func (p ConsentPrompt) WaitForCode(ctx context.Context, authURL string, callbacks <-chan auth.CallbackResult) (string, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.Input != nil {
		opts = append(opts, tea.WithInput(p.Input))
	}
	if p.Output != nil {
		opts = append(opts, tea.WithOutput(p.Output))
	}

	final, err := tea.NewProgram(NewConsentModel(authURL, callbacks), opts...).Run()
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err != nil {
		return "", fmt.Errorf("unable to run consent prompt: %w", err)
	}
	m, ok := final.(ConsentModel)
	if !ok {
		return "", auth.ErrConsentAborted
	}
	return m.Result()
}

// Banner summarizes what the poller is about to watch for.
func Banner(cfg *config.Config) string {
	rows := [][2]string{
		{"From", cfg.Sender},
		{"Subject", cfg.Subject},
		{"Command", cfg.Command},
		{"Every", cfg.Interval.String()},
		{"Provider", cfg.Provider},
	}
	if cfg.HistoryDB != "" {
		rows = append(rows, [2]string{"History", cfg.HistoryDB})
	}

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, TitleStyle.Render("mailcmd"), "")
	for _, r := range rows {
		key := HeaderKeyStyle.Render(fmt.Sprintf("%-9s", r[0]+":"))
		lines = append(lines, key+" "+HeaderValStyle.Render(truncate(r[1], maxBannerValue)))
	}
	return BannerStyle.Render(strings.Join(lines, "\n"))
}
