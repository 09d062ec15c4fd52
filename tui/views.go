package tui

import "strings"

func (m ConsentModel) View() string {
	if m.done {
		if m.err != nil {
			return StatusErrorStyle.Render("Authorization failed: "+m.err.Error()) + "\n"
		}
		return StatusSuccessStyle.Render("Authorization code received") + "\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Gmail authorization"))
	b.WriteString("\n\n")
	b.WriteString("Open this link in your browser and grant access:\n\n")
	// The URL is never truncated; it has to be copied whole.
	b.WriteString(URLStyle.Render(m.authURL))
	b.WriteString("\n\n")
	b.WriteString("Waiting for the browser redirect. If it cannot reach this machine,\n")
	b.WriteString("paste the code or the full redirected URL below.\n\n")
	b.WriteString(m.input.View())
	if m.hint != "" {
		b.WriteString("\n")
		b.WriteString(StatusErrorStyle.Render(m.hint))
	}
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("enter: submit  esc/ctrl+c: abort"))

	box := PromptBoxStyle
	if m.width > 4 {
		box = box.Width(m.width - 2)
	}
	return box.Render(b.String()) + "\n"
}
