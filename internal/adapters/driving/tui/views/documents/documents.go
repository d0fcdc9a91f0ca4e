// Package documents provides the documents list view component for the TUI.
package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/confirm"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// TickInterval is how often elapsed times refresh while documents process.
const TickInterval = time.Second

// View is the documents list view.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	documents driving.DocumentService
	poller    driving.StatusPoller
	confirm   *confirm.Dialog
	ctx       context.Context

	docs    []domain.Document
	cursor  *list.Cursor
	width   int
	height  int
	err     error
	loading bool
	ticking bool
}

// NewView creates a new documents view. poller may be nil.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	documents driving.DocumentService,
	poller driving.StatusPoller,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	v := &View{
		styles:    s,
		keymap:    km,
		documents: documents,
		poller:    poller,
		confirm:   confirm.New(s, km),
		ctx:       context.Background(),
		docs:      []domain.Document{},
		cursor:    list.NewCursor(1),
		width:     80,
		height:    24,
	}
	v.cursor.SetVisible(v.visibleItemCount())
	return v
}

// WithContext sets the context used for service calls and polls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init refreshes the collection from the backend.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.refresh()
}

func (v *View) refresh() tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		docs, err := v.documents.Refresh(ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// reload reads the local collection without contacting the backend.
func (v *View) reload() tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		docs, err := v.documents.List(ctx)
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// Update handles messages for the documents view.
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

	case messages.DocumentsLoaded:
		v.loading = false
		v.err = msg.Err
		// A failed refresh keeps the last known collection.
		if msg.Err == nil && msg.Documents != nil {
			v.docs = msg.Documents
		}
		v.cursor.SetCount(len(v.docs))
		return v, v.startTicking()

	case messages.DocumentActionDone:
		if msg.Err != nil {
			v.err = msg.Err
		}
		return v, v.reload()

	case messages.StatusChanged:
		v.applyEvent(msg.Event)
		return v, v.startTicking()

	case messages.Tick:
		v.ticking = false
		return v, v.startTicking()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()
	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		v.cursor.Up()
	case keymap.Matches(keyStr, v.keymap.Down):
		v.cursor.Down()
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case keymap.Matches(keyStr, v.keymap.Refresh):
		v.loading = true
		return v, v.refresh()
	case keymap.Matches(keyStr, v.keymap.Select):
		if doc := v.SelectedDocument(); doc != nil {
			selected := *doc
			return v, func() tea.Msg {
				return messages.DocumentSelected{Document: selected}
			}
		}
	case keymap.Matches(keyStr, v.keymap.Process):
		if doc := v.SelectedDocument(); doc != nil {
			return v, v.run(doc.ID, messages.ActionProcess)
		}
	case keymap.Matches(keyStr, v.keymap.Reprocess):
		if doc := v.SelectedDocument(); doc != nil {
			v.confirm.Open(fmt.Sprintf("Reprocess %s? Existing chunks and topics are rebuilt.", doc.Filename),
				v.run(doc.ID, messages.ActionReprocess))
		}
	case keymap.Matches(keyStr, v.keymap.Delete):
		if doc := v.SelectedDocument(); doc != nil {
			v.confirm.Open(fmt.Sprintf("Delete %s? This cannot be undone.", doc.Filename),
				v.run(doc.ID, messages.ActionDelete))
		}
	}
	return v, nil
}

// run returns the command performing action on id.
func (v *View) run(id string, action messages.DocumentAction) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		var err error
		switch action {
		case messages.ActionProcess:
			err = v.documents.Process(ctx, id)
		case messages.ActionReprocess:
			err = v.documents.Reprocess(ctx, id)
		case messages.ActionDelete:
			err = v.documents.Delete(ctx, id)
		}
		return messages.DocumentActionDone{DocumentID: id, Action: action, Err: err}
	}
}

// applyEvent patches a document's status from a poller event.
func (v *View) applyEvent(e domain.DocumentStatusEvent) {
	for i := range v.docs {
		if v.docs[i].ID == e.DocumentID {
			v.docs[i].Status = e.Status
			return
		}
	}
}

// startTicking schedules an elapsed-time refresh while anything processes.
func (v *View) startTicking() tea.Cmd {
	if v.ticking || v.inFlight() == 0 {
		return nil
	}
	v.ticking = true
	return tea.Tick(TickInterval, func(time.Time) tea.Msg { return messages.Tick{} })
}

func (v *View) inFlight() int {
	n := 0
	for i := range v.docs {
		if v.docs[i].Status == domain.StatusProcessing {
			n++
		}
	}
	return n
}

// visibleItemCount returns the number of documents that fit on screen.
func (v *View) visibleItemCount() int {
	// Title, header, scroll indicator, help and status bar
	available := v.height - 9
	if available < 1 {
		available = 1
	}
	return available
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%d)", len(v.docs))))
	if n := v.inFlight(); n > 0 {
		b.WriteString(v.styles.Warning.Render(fmt.Sprintf("  %d processing", n)))
	}
	b.WriteString("\n\n")

	if v.confirm.Visible() {
		b.WriteString(v.confirm.View())
		return b.String()
	}

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	}

	switch {
	case v.loading && len(v.docs) == 0:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
		b.WriteString("\n")
	case len(v.docs) == 0:
		b.WriteString(v.styles.Muted.Render("No documents. Upload with `ragdesk documents upload FILE`."))
		b.WriteString("\n")
	default:
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("  %-*s  %-10s  %9s  %7s  %s",
			v.nameWidth(), "NAME", "STATUS", "SIZE", "CHUNKS", "UPLOADED")))
		b.WriteString("\n")
		start, end := v.cursor.Window()
		for i := start; i < end; i++ {
			b.WriteString(v.renderDocument(i, &v.docs[i]))
			b.WriteString("\n")
		}
		if v.cursor.Scrolls() {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(v.docs))))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [enter] chunks  [p] process  [R] reprocess  [d] delete  [r] refresh  [esc] back"))
	return b.String()
}

func (v *View) nameWidth() int {
	w := v.width - 50
	if w < 12 {
		w = 12
	}
	return w
}

// renderDocument renders a single document line.
func (v *View) renderDocument(index int, doc *domain.Document) string {
	name := doc.Filename
	if name == "" {
		name = doc.ID
	}
	maxLen := v.nameWidth()
	if len(name) > maxLen {
		name = name[:maxLen-3] + "..."
	}

	status := string(doc.Status)
	if doc.Status == domain.StatusProcessing && v.poller != nil {
		if elapsed, ok := v.poller.Elapsed(doc.ID); ok {
			status = fmt.Sprintf("%s %ds", status, int(elapsed.Seconds()))
		}
	}

	uploaded := ""
	if !doc.UploadedAt.IsZero() {
		uploaded = humanize.Time(doc.UploadedAt)
	}

	line := fmt.Sprintf("%-*s  %-10s  %9s  %7d  %s",
		maxLen, name, status, humanize.IBytes(uint64(max(doc.Size, 0))), doc.ChunkCount, uploaded)

	if index == v.cursor.Selected() {
		return v.styles.Selected.Render("> " + line)
	}
	return "  " + v.styles.Status(doc.Status).Render(line)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.cursor.SetVisible(v.visibleItemCount())
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.Document {
	return v.docs
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.Document {
	i := v.cursor.Selected()
	if i < 0 || i >= len(v.docs) {
		return nil
	}
	return &v.docs[i]
}

// Confirming reports whether the confirmation overlay is visible.
func (v *View) Confirming() bool {
	return v.confirm.Visible()
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
