package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bassamadnan/mailcmd/auth"
)

// ConsentModel shows the authorization URL and finishes when either the
// browser redirect arrives or the user pastes a code and presses enter.
type ConsentModel struct {
	authURL   string
	state     string
	callbacks <-chan auth.CallbackResult

	input textinput.Model
	width int

	hint string
	code string
	err  error
	done bool
}

func NewConsentModel(authURL string, callbacks <-chan auth.CallbackResult) ConsentModel {
	ti := textinput.New()
	ti.Placeholder = "paste the code or the redirected URL..."
	ti.Prompt = "> "
	ti.CharLimit = 2048
	ti.Focus()

	return ConsentModel{
		authURL:   authURL,
		state:     stateOf(authURL),
		callbacks: callbacks,
		input:     ti,
	}
}

func (m ConsentModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForCallbackCmd(m.callbacks))
}

func (m ConsentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case CallbackMsg:
		m.code, m.err = msg.Code, msg.Err
		m.done = true
		return m, tea.Quit

	case callbacksClosedMsg:
		m.hint = "Callback listener stopped; paste the code instead."
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 6
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.err = auth.ErrConsentAborted
			m.done = true
			return m, tea.Quit
		case "enter":
			code, ok := extractCode(m.input.Value(), m.state)
			if !ok {
				m.hint = "That does not look like an authorization code."
				m.input.Reset()
				return m, nil
			}
			m.code = code
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Result is the code obtained, or why there is none.
func (m ConsentModel) Result() (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if !m.done || m.code == "" {
		return "", auth.ErrConsentAborted
	}
	return m.code, nil
}
