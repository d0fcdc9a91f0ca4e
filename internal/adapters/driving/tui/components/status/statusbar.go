// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// ToastDuration is how long a notification stays in the status bar.
const ToastDuration = 4 * time.Second

// Bar displays the latest notification, background work and keybinding hints.
type Bar struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	bindings []key.Binding
	toast    *domain.Notification
	seq      int
	inFlight int
	width    int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles:   s,
		keymap:   km,
		bindings: km.ShortHelp(),
		width:    80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update shows notifications and clears expired ones.
func (s *Bar) Update(msg tea.Msg) (*Bar, tea.Cmd) {
	switch msg := msg.(type) {
	case messages.Notify:
		return s, s.Show(msg.Notification)
	case messages.ToastExpired:
		if msg.Seq == s.seq {
			s.toast = nil
		}
	}
	return s, nil
}

// Show displays n and returns the command that expires it.
func (s *Bar) Show(n domain.Notification) tea.Cmd {
	s.seq++
	s.toast = &n
	seq := s.seq
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return messages.ToastExpired{Seq: seq}
	})
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - s.styles.StatusBar.GetHorizontalFrameSize() -
		lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	if s.toast != nil {
		text := s.toast.Title
		if s.toast.Message != "" {
			text += ": " + s.toast.Message
		}
		return s.styles.Level(s.toast.Level).Render(text)
	}
	if s.inFlight > 0 {
		return s.styles.Warning.Render(fmt.Sprintf("%d processing", s.inFlight))
	}
	return s.styles.Muted.Render("Ready")
}

func (s *Bar) renderRight() string {
	hints := make([]string, 0, len(s.bindings))
	for _, b := range s.bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetBindings replaces the keybinding hints. Nil restores the short help.
func (s *Bar) SetBindings(bindings []key.Binding) {
	if bindings == nil {
		bindings = s.keymap.ShortHelp()
	}
	s.bindings = bindings
}

// SetInFlight sets the number of documents being processed.
func (s *Bar) SetInFlight(n int) {
	s.inFlight = n
}

// Toast returns the visible notification, if any.
func (s *Bar) Toast() *domain.Notification {
	return s.toast
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear removes the visible notification.
func (s *Bar) Clear() {
	s.toast = nil
}
