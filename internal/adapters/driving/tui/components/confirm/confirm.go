// Package confirm provides the yes/no overlay guarding destructive actions.
package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
)

// Dialog asks the user to confirm an action before running it.
type Dialog struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	prompt  string
	action  tea.Cmd
	visible bool
}

// New creates a hidden dialog.
func New(s *styles.Styles, km *keymap.KeyMap) *Dialog {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Dialog{styles: s, keymap: km}
}

// Open shows prompt; action runs only if the user confirms.
func (d *Dialog) Open(prompt string, action tea.Cmd) {
	d.prompt = prompt
	d.action = action
	d.visible = true
}

// Visible reports whether the dialog is waiting for an answer.
func (d *Dialog) Visible() bool {
	return d.visible
}

// Prompt returns the question being asked.
func (d *Dialog) Prompt() string {
	return d.prompt
}

// Update consumes every key while visible. Confirming returns the action.
func (d *Dialog) Update(msg tea.KeyMsg) tea.Cmd {
	if !d.visible {
		return nil
	}
	keyStr := msg.String()
	switch {
	case keymap.Matches(keyStr, d.keymap.Confirm):
		action := d.action
		d.close()
		return action
	case keymap.Matches(keyStr, d.keymap.Deny):
		d.close()
	}
	return nil
}

func (d *Dialog) close() {
	d.visible = false
	d.action = nil
	d.prompt = ""
}

// View renders the dialog, or nothing when hidden.
func (d *Dialog) View() string {
	if !d.visible {
		return ""
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		d.styles.Warning.Render(d.prompt),
		"",
		d.styles.Help.Render("[y] yes  [n] no"),
	)
	return d.styles.Dialog.Render(body)
}
