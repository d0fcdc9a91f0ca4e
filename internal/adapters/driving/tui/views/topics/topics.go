// Package topics provides the topic browser with debounced live search.
package topics

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/confirm"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// DebounceDelay is the pause after the last keystroke before searching.
const DebounceDelay = 300 * time.Millisecond

// PageSize is the number of topics listed when the query is blank.
const PageSize = 50

// View is the topics view.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	topics  driving.TopicService
	input   *input.Field
	confirm *confirm.Dialog
	ctx     context.Context

	results       []domain.Topic
	cursor        *list.Cursor
	relationships []domain.TopicRelationship
	detailFor     string
	seq           int
	lastQuery     string
	focusInput    bool
	loading       bool
	width         int
	height        int
	err           error
}

// NewView creates a new topics view.
func NewView(s *styles.Styles, km *keymap.KeyMap, topics driving.TopicService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	v := &View{
		styles:     s,
		keymap:     km,
		topics:     topics,
		input:      input.NewField(s, "Search:", "Filter topics..."),
		confirm:    confirm.New(s, km),
		ctx:        context.Background(),
		results:    []domain.Topic{},
		cursor:     list.NewCursor(1),
		focusInput: true,
		width:      80,
		height:     24,
	}
	v.cursor.SetVisible(v.visibleItemCount())
	return v
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the first page of topics.
func (v *View) Init() tea.Cmd {
	v.seq++
	v.loading = true
	return tea.Batch(v.input.Init(), v.search(v.seq, v.input.Value()))
}

// search runs query; a blank query falls back to the listing in the service.
func (v *View) search(seq int, query string) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		if strings.TrimSpace(query) == "" {
			page, err := v.topics.List(ctx, domain.TopicFilter{Page: 1, Limit: PageSize})
			return messages.TopicsLoaded{Seq: seq, Query: query, Topics: page.Topics, Err: err}
		}
		found, err := v.topics.Search(ctx, query)
		return messages.TopicsLoaded{Seq: seq, Query: query, Topics: found, Err: err}
	}
}

// Update handles messages for the topics view.
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

	case messages.TopicSearchDue:
		if msg.Seq != v.seq {
			return v, nil
		}
		v.loading = true
		return v, v.search(msg.Seq, v.input.Value())

	case messages.TopicsLoaded:
		// Results of a superseded search never replace newer state.
		if msg.Seq != v.seq {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.results = msg.Topics
			if v.results == nil {
				v.results = []domain.Topic{}
			}
			v.lastQuery = msg.Query
			v.cursor.SetCount(len(v.results))
			v.cursor.Reset()
			v.relationships = nil
			v.detailFor = ""
		}
		return v, nil

	case messages.RelationshipsLoaded:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.detailFor = msg.TopicID
		v.relationships = msg.Relationships
		return v, nil

	case messages.TopicDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		kept := v.results[:0]
		for _, t := range v.results {
			if t.ID != msg.TopicID {
				kept = append(kept, t)
			}
		}
		v.results = kept
		v.cursor.SetCount(len(v.results))
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

	switch {
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case keymap.Matches(keyStr, v.keymap.Focus):
		v.focusInput = !v.focusInput
		if v.focusInput {
			return v, v.input.Focus()
		}
		v.input.Blur()
		return v, nil
	}

	if v.focusInput {
		// Arrow keys still move through results while typing.
		switch msg.Type {
		case tea.KeyUp:
			v.cursor.Up()
			return v, nil
		case tea.KeyDown:
			v.cursor.Down()
			return v, nil
		case tea.KeyEnter:
			return v, v.loadRelationships()
		}
		before := v.input.Value()
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		if v.input.Value() == before {
			return v, cmd
		}
		v.seq++
		seq := v.seq
		return v, tea.Batch(cmd, tea.Tick(DebounceDelay, func(time.Time) tea.Msg {
			return messages.TopicSearchDue{Seq: seq}
		}))
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		v.cursor.Up()
	case keymap.Matches(keyStr, v.keymap.Down):
		v.cursor.Down()
	case keymap.Matches(keyStr, v.keymap.Select):
		return v, v.loadRelationships()
	case keymap.Matches(keyStr, v.keymap.Refresh):
		v.seq++
		v.loading = true
		return v, v.search(v.seq, v.input.Value())
	case keymap.Matches(keyStr, v.keymap.Delete):
		if t := v.SelectedTopic(); t != nil {
			id := t.ID
			ctx := v.ctx
			v.confirm.Open(fmt.Sprintf("Delete topic %q?", t.Name), func() tea.Msg {
				return messages.TopicDeleted{TopicID: id, Err: v.topics.Delete(ctx, id)}
			})
		}
	}
	return v, nil
}

func (v *View) loadRelationships() tea.Cmd {
	t := v.SelectedTopic()
	if t == nil {
		return nil
	}
	id := t.ID
	ctx := v.ctx
	return func() tea.Msg {
		rels, err := v.topics.Relationships(ctx, id)
		return messages.RelationshipsLoaded{TopicID: id, Relationships: rels, Err: err}
	}
}

func (v *View) visibleItemCount() int {
	// Title, input box, header, detail panel, help and status bar
	n := v.height - 16
	if n < 1 {
		n = 1
	}
	return n
}

// View renders the topics view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Topics (%d)", len(v.results))))
	if v.loading {
		b.WriteString(v.styles.Muted.Render("  searching..."))
	}
	b.WriteString("\n\n")

	if v.confirm.Visible() {
		b.WriteString(v.confirm.View())
		return b.String()
	}

	b.WriteString(v.input.View())
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	}

	if len(v.results) == 0 {
		if strings.TrimSpace(v.lastQuery) != "" {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("No topics match %q.", v.lastQuery)))
		} else if !v.loading {
			b.WriteString(v.styles.Muted.Render("No topics yet. Topics appear once documents are processed."))
		}
		b.WriteString("\n")
	} else {
		start, end := v.cursor.Window()
		for i := start; i < end; i++ {
			b.WriteString(v.renderTopic(i, &v.results[i]))
			b.WriteString("\n")
		}
		if v.cursor.Scrolls() {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(v.results))))
			b.WriteString("\n")
		}
	}

	if detail := v.renderDetail(); detail != "" {
		b.WriteString("\n")
		b.WriteString(detail)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[type] search  [↑/↓] navigate  [enter] details  [tab] list mode  [d] delete  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) renderTopic(index int, t *domain.Topic) string {
	category := t.Category
	if category == "" {
		category = "uncategorized"
	}
	line := fmt.Sprintf("%-32s  %-16s  %3d docs  %4d chunks", truncate(t.Name, 32), truncate(category, 16), t.DocumentCount, t.ChunkCount)
	if index == v.cursor.Selected() {
		return v.styles.Selected.Render("> " + line)
	}
	return "  " + v.styles.Normal.Render(line)
}

func (v *View) renderDetail() string {
	t := v.SelectedTopic()
	if t == nil || t.ID != v.detailFor {
		return ""
	}
	var lines []string
	lines = append(lines, v.styles.Subtitle.Render(t.Name))
	if t.Description != "" {
		lines = append(lines, lipgloss.NewStyle().Width(v.width-6).Render(t.Description))
	}
	if len(t.Keywords) > 0 {
		lines = append(lines, v.styles.Muted.Render("keywords: "+strings.Join(t.Keywords, ", ")))
	}
	if len(v.relationships) == 0 {
		lines = append(lines, v.styles.Muted.Render("no related topics"))
	}
	for _, r := range v.relationships {
		lines = append(lines, fmt.Sprintf("  %s %s (%.2f)", r.Type, r.TopicName, r.Strength))
	}
	return v.styles.Border.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.cursor.SetVisible(v.visibleItemCount())
}

// Results returns the displayed topics.
func (v *View) Results() []domain.Topic {
	return v.results
}

// SelectedTopic returns the selected topic, if any.
func (v *View) SelectedTopic() *domain.Topic {
	i := v.cursor.Selected()
	if i < 0 || i >= len(v.results) {
		return nil
	}
	return &v.results[i]
}

// Seq returns the sequence number of the latest search request.
func (v *View) Seq() int {
	return v.seq
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// InputFocused reports whether keystrokes go to the search input.
func (v *View) InputFocused() bool {
	return v.focusInput
}
