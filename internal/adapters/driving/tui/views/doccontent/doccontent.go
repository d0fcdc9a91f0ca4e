// Package doccontent provides the document content view: metadata and the
// chunks the backend produced for one document.
package doccontent

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// View is the document content view.
type View struct {
	styles    *styles.Styles
	documents driving.DocumentService
	ctx       context.Context

	document     *domain.Document
	chunks       []domain.Chunk
	lines        []string
	scrollOffset int
	width        int
	height       int
	err          error
	loading      bool
}

// NewView creates a new document content view.
func NewView(s *styles.Styles, documents driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:    s,
		documents: documents,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetDocument sets the document and loads its chunks.
func (v *View) SetDocument(doc domain.Document) tea.Cmd {
	v.document = &doc
	v.chunks = nil
	v.lines = nil
	v.scrollOffset = 0
	v.err = nil
	v.loading = true
	return v.loadChunks(doc.ID)
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

func (v *View) loadChunks(id string) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		chunks, err := v.documents.Chunks(ctx, id)
		return messages.ChunksLoaded{DocumentID: id, Chunks: chunks, Err: err}
	}
}

// Update handles messages for the document content view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ChunksLoaded:
		if v.document == nil || msg.DocumentID != v.document.ID {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		v.chunks = msg.Chunks
		v.wrapContent()
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup", "ctrl+u":
		v.scrollOffset -= v.visibleLines()
		if v.scrollOffset < 0 {
			v.scrollOffset = 0
		}
	case "pgdown", "ctrl+d":
		v.scrollOffset += v.visibleLines()
		if maxOffset := v.maxScrollOffset(); v.scrollOffset > maxOffset {
			v.scrollOffset = maxOffset
		}
	case "g", "home":
		v.scrollOffset = 0
	case "G", "end":
		v.scrollOffset = v.maxScrollOffset()
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewDocuments}
		}
	}
	return v, nil
}

// wrapContent flattens chunks into display lines wrapped to the view width.
func (v *View) wrapContent() {
	v.lines = nil
	wrap := lipgloss.NewStyle().Width(v.contentWidth())
	for _, c := range v.chunks {
		header := fmt.Sprintf("── chunk %d", c.Index)
		if c.Page > 0 {
			header += fmt.Sprintf(" · page %d", c.Page)
		}
		if c.TokenCount > 0 {
			header += fmt.Sprintf(" · %d tokens", c.TokenCount)
		}
		v.lines = append(v.lines, v.styles.Subtitle.Render(header))
		v.lines = append(v.lines, strings.Split(wrap.Render(c.Content), "\n")...)
		v.lines = append(v.lines, "")
	}
	if maxOffset := v.maxScrollOffset(); v.scrollOffset > maxOffset {
		v.scrollOffset = maxOffset
	}
}

func (v *View) contentWidth() int {
	w := v.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

func (v *View) visibleLines() int {
	// Title, metadata, separator, help and status bar
	n := v.height - 10
	if n < 1 {
		n = 1
	}
	return n
}

func (v *View) maxScrollOffset() int {
	n := len(v.lines) - v.visibleLines()
	if n < 0 {
		return 0
	}
	return n
}

// View renders the document content view.
func (v *View) View() string {
	var b strings.Builder

	if v.document == nil {
		b.WriteString(v.styles.Muted.Render("No document selected."))
		return b.String()
	}

	doc := v.document
	b.WriteString(v.styles.Title.Render(doc.Filename))
	b.WriteString("\n")
	meta := fmt.Sprintf("%s · %s · %d chunks · %d topics",
		v.styles.Status(doc.Status).Render(string(doc.Status)),
		humanize.IBytes(uint64(max(doc.Size, 0))), doc.ChunkCount, doc.TopicCount)
	if !doc.UploadedAt.IsZero() {
		meta += " · uploaded " + humanize.Time(doc.UploadedAt)
	}
	b.WriteString(v.styles.Muted.Render(meta))
	b.WriteString("\n")
	if doc.ErrorMessage != "" {
		b.WriteString(v.styles.Error.Render(doc.ErrorMessage))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading chunks..."))
		b.WriteString("\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	case len(v.chunks) == 0:
		b.WriteString(v.styles.Muted.Render("No chunks yet. Process the document first."))
		b.WriteString("\n")
	default:
		end := v.scrollOffset + v.visibleLines()
		if end > len(v.lines) {
			end = len(v.lines)
		}
		for _, line := range v.lines[v.scrollOffset:end] {
			b.WriteString(line)
			b.WriteString("\n")
		}
		if len(v.lines) > v.visibleLines() {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d lines]", v.scrollOffset+1, end, len(v.lines))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] scroll  [pgup/pgdn] page  [g/G] top/bottom  [esc] back"))
	return b.String()
}

// SetDimensions sets the view dimensions and rewraps the content.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	if v.chunks != nil {
		v.wrapContent()
	}
}

// Chunks returns the loaded chunks.
func (v *View) Chunks() []domain.Chunk {
	return v.chunks
}

// ScrollOffset returns the first visible line.
func (v *View) ScrollOffset() int {
	return v.scrollOffset
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
