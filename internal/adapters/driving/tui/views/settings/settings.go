// Package settings provides the settings configuration view for the TUI.
package settings

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// maskedValue is shown in place of secret values.
const maskedValue = "********"

// View is the settings configuration view.
type View struct {
	styles          *styles.Styles
	keymap          *keymap.KeyMap
	settingsService driving.SettingsService

	settings *domain.AppSettings
	keys     []string
	cursor   *list.Cursor
	input    *input.Field

	// editing is the key being edited, or "" when browsing.
	editing string
	saved   string
	err     error

	width  int
	height int
}

// NewView creates a new settings view.
func NewView(s *styles.Styles, km *keymap.KeyMap, settingsService driving.SettingsService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	v := &View{
		styles:          s,
		keymap:          km,
		settingsService: settingsService,
		cursor:          list.NewCursor(1),
		input:           input.NewField(s, "Value:", ""),
		width:           80,
		height:          24,
	}
	v.cursor.SetVisible(v.visibleItemCount())
	return v
}

// Init initialises the view and loads settings.
func (v *View) Init() tea.Cmd {
	v.editing = ""
	v.saved = ""
	return v.loadSettings()
}

// loadSettings returns a command that loads current settings.
func (v *View) loadSettings() tea.Cmd {
	return func() tea.Msg {
		if v.settingsService == nil {
			return messages.SettingsLoaded{Err: fmt.Errorf("settings service not available")}
		}
		settings, err := v.settingsService.Get()
		return messages.SettingsLoaded{Settings: settings, Err: err}
	}
}

// Update handles messages for the settings view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case messages.SettingsLoaded:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.settings = msg.Settings
		v.keys = v.settingsService.Keys()
		v.cursor.SetCount(len(v.keys))
		return v, nil

	case messages.SettingSaved:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.editing = ""
		v.saved = msg.Key
		return v, v.loadSettings()

	case tea.KeyMsg:
		if v.editing != "" {
			return v.handleEditKeys(msg)
		}
		return v.handleKeyMsg(msg)
	}

	if v.editing != "" {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()
	switch {
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case keymap.Matches(keyStr, v.keymap.Up):
		v.cursor.Up()
	case keymap.Matches(keyStr, v.keymap.Down):
		v.cursor.Down()
	case keymap.Matches(keyStr, v.keymap.Select):
		key := v.SelectedKey()
		if key == "" {
			return v, nil
		}
		v.editing = key
		v.saved = ""
		v.err = nil
		v.input.SetLabel(key + ":")
		v.input.SetMasked(domain.IsSecretKey(key))
		v.input.Reset()
		if stored, ok := v.settingsService.Value(key); ok && !domain.IsSecretKey(key) {
			v.input.SetValue(stored)
		}
		return v, v.input.Focus()
	case keyStr == "u":
		key := v.SelectedKey()
		if key == "" {
			return v, nil
		}
		return v, func() tea.Msg {
			return messages.SettingSaved{Key: key, Err: v.settingsService.Unset(key)}
		}
	case keymap.Matches(keyStr, v.keymap.Refresh):
		return v, v.loadSettings()
	}
	return v, nil
}

func (v *View) handleEditKeys(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		v.editing = ""
		v.input.Blur()
		return v, nil
	case tea.KeyEnter:
		key := v.editing
		value := strings.TrimSpace(v.input.Value())
		return v, func() tea.Msg {
			return messages.SettingSaved{Key: key, Err: v.settingsService.Set(key, value)}
		}
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) visibleItemCount() int {
	n := v.height - 12
	if n < 1 {
		n = 1
	}
	return n
}

// View renders the settings view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Settings"))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	}
	if v.saved != "" {
		b.WriteString(v.styles.Success.Render(fmt.Sprintf("Saved %s", v.saved)))
		b.WriteString("\n\n")
	}

	if v.settings == nil {
		if v.err == nil {
			b.WriteString(v.styles.Muted.Render("Loading settings..."))
			b.WriteString("\n")
		}
		return b.String()
	}

	start, end := v.cursor.Window()
	for i := start; i < end; i++ {
		b.WriteString(v.renderRow(i, v.keys[i]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if v.editing != "" {
		b.WriteString(v.input.View())
		b.WriteString("\n\n")
		b.WriteString(v.styles.Help.Render("[enter] save  [esc] cancel"))
		return b.String()
	}

	if v.settings.UsesDevPassword() {
		b.WriteString(v.styles.Warning.Render("Login uses the development password. Set RAGDESK_PASSWORD to change it."))
		b.WriteString("\n\n")
	}
	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [enter] edit  [u] reset to default  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) renderRow(index int, key string) string {
	value := v.settings.Effective(key)
	_, stored := v.settingsService.Value(key)
	if domain.IsSecretKey(key) && value != "" {
		value = maskedValue
	}
	if value == "" {
		value = "-"
	}
	origin := "default"
	if stored {
		origin = "set"
	}

	line := fmt.Sprintf("%-18s %-36s", key, value)
	if index == v.cursor.Selected() {
		return v.styles.Selected.Render("> "+line) + " " + v.styles.Muted.Render(origin)
	}
	return "  " + v.styles.Normal.Render(line) + " " + v.styles.Muted.Render(origin)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.cursor.SetVisible(v.visibleItemCount())
}

// SelectedKey returns the highlighted setting key.
func (v *View) SelectedKey() string {
	i := v.cursor.Selected()
	if i < 0 || i >= len(v.keys) {
		return ""
	}
	return v.keys[i]
}

// Editing returns the key being edited, or "".
func (v *View) Editing() string {
	return v.editing
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
