// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/confirm"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// View is the chat view. In input mode keys go to the question field; in
// history mode they select and act on earlier answers.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	chat    driving.ChatService
	input   *input.Field
	confirm *confirm.Dialog
	ctx     context.Context

	history       []domain.ChatMessage
	pending       string
	selected      int
	focusInput    bool
	showReasoning bool
	sending       bool
	width         int
	height        int
	err           error
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, chat driving.ChatService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:     s,
		keymap:     km,
		chat:       chat,
		input:      input.NewField(s, "Ask:", "Ask a question about your documents..."),
		confirm:    confirm.New(s, km),
		ctx:        context.Background(),
		history:    []domain.ChatMessage{},
		focusInput: true,
		width:      80,
		height:     24,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the stored conversation.
func (v *View) Init() tea.Cmd {
	return tea.Batch(v.input.Init(), v.load())
}

func (v *View) load() tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		msgs, err := v.chat.Messages(ctx)
		return messages.MessagesLoaded{Messages: msgs, Err: err}
	}
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.confirm.Visible() {
			return v, v.confirm.Update(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.MessagesLoaded:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.history = msg.Messages
		v.selectLastAnswer()
		return v, nil

	case messages.ChatReplied:
		v.sending = false
		v.pending = ""
		v.err = msg.Err
		// Failed answers are stored too, so reload either way.
		return v, v.load()

	case messages.MessageRated:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		for i := range v.history {
			if v.history[i].ID == msg.MessageID {
				v.history[i].Rating = msg.Rating
			}
		}
		return v, nil

	case messages.ChatCleared:
		v.err = msg.Err
		if msg.Err == nil {
			v.history = []domain.ChatMessage{}
			v.selected = 0
		}
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	if v.focusInput {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	if keymap.Matches(keyStr, v.keymap.Back) {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}
	if keymap.Matches(keyStr, v.keymap.Focus) {
		v.focusInput = !v.focusInput
		if v.focusInput {
			return v, v.input.Focus()
		}
		v.input.Blur()
		return v, nil
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			return v, v.send()
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		v.move(-1)
	case keymap.Matches(keyStr, v.keymap.Down):
		v.move(1)
	case len(keyStr) == 1 && keyStr[0] >= '1' && keyStr[0] <= '5':
		return v, v.rate(int(keyStr[0] - '0'))
	case keyStr == "g":
		return v, v.regenerate()
	case keyStr == "t":
		v.showReasoning = !v.showReasoning
	case keyStr == "x":
		if len(v.history) > 0 {
			ctx := v.ctx
			v.confirm.Open("Clear the whole conversation?", func() tea.Msg {
				return messages.ChatCleared{Err: v.chat.Clear(ctx)}
			})
		}
	}
	return v, nil
}

// send submits the typed question.
func (v *View) send() tea.Cmd {
	query := strings.TrimSpace(v.input.Value())
	if query == "" || v.sending {
		return nil
	}
	v.input.Reset()
	v.sending = true
	v.pending = query
	v.err = nil
	ctx := v.ctx
	return func() tea.Msg {
		reply, err := v.chat.Send(ctx, query, domain.DefaultQueryOptions())
		return messages.ChatReplied{Message: reply, Err: err}
	}
}

func (v *View) rate(rating int) tea.Cmd {
	m := v.SelectedMessage()
	if m == nil {
		return nil
	}
	id := m.ID
	ctx := v.ctx
	return func() tea.Msg {
		return messages.MessageRated{MessageID: id, Rating: rating, Err: v.chat.Rate(ctx, id, rating)}
	}
}

func (v *View) regenerate() tea.Cmd {
	m := v.SelectedMessage()
	if m == nil || v.sending {
		return nil
	}
	v.sending = true
	id := m.ID
	ctx := v.ctx
	return func() tea.Msg {
		reply, err := v.chat.Regenerate(ctx, id)
		return messages.ChatReplied{Message: reply, Err: err}
	}
}

// move selects the next assistant message in direction dir.
func (v *View) move(dir int) {
	for i := v.selected + dir; i >= 0 && i < len(v.history); i += dir {
		if v.history[i].Role == domain.RoleAssistant {
			v.selected = i
			return
		}
	}
}

func (v *View) selectLastAnswer() {
	v.selected = 0
	for i := len(v.history) - 1; i >= 0; i-- {
		if v.history[i].Role == domain.RoleAssistant {
			v.selected = i
			return
		}
	}
}

// View renders the chat view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Chat"))
	b.WriteString("\n\n")

	if v.confirm.Visible() {
		b.WriteString(v.confirm.View())
		return b.String()
	}

	lines, selStart := v.renderHistory()
	budget := v.historyHeight()
	from := 0
	if len(lines) > budget {
		// Follow the tail unless the selected answer is above it.
		from = len(lines) - budget
		if !v.focusInput && selStart < from {
			from = selStart
		}
	}
	to := from + budget
	if to > len(lines) {
		to = len(lines)
	}
	for _, line := range lines[from:to] {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.input.View())
	b.WriteString("\n")
	if v.focusInput {
		b.WriteString(v.styles.Help.Render("[enter] send  [tab] history  [esc] back"))
	} else {
		b.WriteString(v.styles.Help.Render("[↑/↓] select  [1-5] rate  [g] regenerate  [t] reasoning  [x] clear  [tab] ask"))
	}
	return b.String()
}

// renderHistory returns the conversation lines and the first line of the
// selected message.
func (v *View) renderHistory() (lines []string, selStart int) {
	if len(v.history) == 0 && v.pending == "" {
		return []string{v.styles.Muted.Render("No messages yet. Ask something about your documents.")}, 0
	}

	wrap := lipgloss.NewStyle().Width(v.contentWidth())
	for i := range v.history {
		m := &v.history[i]
		if i == v.selected {
			selStart = len(lines)
		}
		lines = append(lines, v.renderMessage(m, i == v.selected && !v.focusInput, wrap)...)
		lines = append(lines, "")
	}
	if v.pending != "" {
		lines = append(lines, v.styles.UserMessage.Render("You: ")+v.pending)
		lines = append(lines, v.styles.Muted.Render("  thinking..."))
	}
	return lines, selStart
}

func (v *View) renderMessage(m *domain.ChatMessage, selected bool, wrap lipgloss.Style) []string {
	if m.Role == domain.RoleUser {
		return strings.Split(v.styles.UserMessage.Render("You: ")+wrap.Render(m.Content), "\n")
	}

	var out []string
	marker := "  "
	if selected {
		marker = "> "
	}
	header := marker + v.styles.Subtitle.Render("Assistant")
	if m.IsRated() {
		header += "  " + v.styles.Warning.Render(stars(m.Rating))
	}
	out = append(out, header)

	body := m.Content
	if m.Failed {
		body = v.styles.Error.Render(body)
	}
	out = append(out, strings.Split(v.styles.AssistantMessage.Render(wrap.Render(body)), "\n")...)

	if v.showReasoning && m.Reasoning != "" {
		out = append(out, v.styles.Muted.Render("  reasoning:"))
		out = append(out, strings.Split(v.styles.Muted.Render(wrap.Render(m.Reasoning)), "\n")...)
	}
	if len(m.TopicAnalyses) > 0 {
		names := make([]string, 0, len(m.TopicAnalyses))
		for _, a := range m.TopicAnalyses {
			names = append(names, fmt.Sprintf("%s (%.0f%%)", a.TopicName, a.SimilarityScore*100))
		}
		out = append(out, v.styles.Muted.Render("  topics: "+strings.Join(names, ", ")))
	}
	if len(m.Sources) > 0 {
		seen := make(map[string]bool)
		var files []string
		for _, s := range m.Sources {
			if s.Filename != "" && !seen[s.Filename] {
				seen[s.Filename] = true
				files = append(files, s.Filename)
			}
		}
		if len(files) > 0 {
			out = append(out, v.styles.Muted.Render("  sources: "+strings.Join(files, ", ")))
		}
	}
	return out
}

func stars(rating int) string {
	return strings.Repeat("★", rating) + strings.Repeat("☆", domain.MaxRating-rating)
}

func (v *View) contentWidth() int {
	w := v.width - 6
	if w < 20 {
		w = 20
	}
	return w
}

func (v *View) historyHeight() int {
	// Title, error, input box, help and status bar
	h := v.height - 11
	if h < 3 {
		h = 3
	}
	return h
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
}

// Messages returns the displayed conversation.
func (v *View) Messages() []domain.ChatMessage {
	return v.history
}

// SelectedMessage returns the selected assistant message, if any.
func (v *View) SelectedMessage() *domain.ChatMessage {
	if v.selected < 0 || v.selected >= len(v.history) {
		return nil
	}
	m := &v.history[v.selected]
	if m.Role != domain.RoleAssistant {
		return nil
	}
	return m
}

// InputFocused reports whether keys go to the question field.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Sending reports whether a question is awaiting its answer.
func (v *View) Sending() bool {
	return v.sending
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
