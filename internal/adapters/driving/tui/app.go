package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/views/analytics"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/views/chat"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/views/doccontent"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/views/settings"
	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/views/topics"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// statusBarHeight is the number of lines reserved below every view.
const statusBarHeight = 1

// notificationReceived wraps a notification read from the ports channel so
// the listener is re-armed only for channel deliveries.
type notificationReceived struct {
	notification domain.Notification
}

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	menuView       *menu.View
	documentsView  *documents.View
	docContentView *doccontent.View
	chatView       *chat.View
	topicsView     *topics.View
	analyticsView  *analytics.View
	settingsView   *settings.View
	statusBar      *status.Bar

	// statusEvents is the poller subscription, nil without a poller.
	statusEvents <-chan domain.DocumentStatusEvent
	unsubscribe  func()

	currentView messages.ViewType
	err         error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		keymap:         km,
		menuView:       menu.NewView(s),
		documentsView:  documents.NewView(s, km, ports.Documents, ports.Poller),
		docContentView: doccontent.NewView(s, ports.Documents),
		chatView:       chat.NewView(s, km, ports.Chat),
		topicsView:     topics.NewView(s, km, ports.Topics),
		analyticsView:  analytics.NewView(s, ports.Analytics),
		settingsView:   settings.NewView(s, km, ports.Settings),
		statusBar:      status.NewBar(s, km),
		currentView:    messages.ViewMenu,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.documentsView.WithContext(ctx)
	a.docContentView.WithContext(ctx)
	a.chatView.WithContext(ctx)
	a.topicsView.WithContext(ctx)
	a.analyticsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
// It subscribes to poller events and service notifications.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tea.SetWindowTitle("ragdesk"),
	}
	if a.ports.Poller != nil && a.statusEvents == nil {
		a.statusEvents, a.unsubscribe = a.ports.Poller.Subscribe()
	}
	if a.statusEvents != nil {
		cmds = append(cmds, listenStatus(a.statusEvents))
	}
	if a.ports.Notifications != nil {
		cmds = append(cmds, listenNotifications(a.ports.Notifications))
	}
	return tea.Batch(cmds...)
}

// listenStatus waits for the next poller event.
func listenStatus(ch <-chan domain.DocumentStatusEvent) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return messages.StatusChanged{Event: e}
	}
}

// listenNotifications waits for the next service notification.
func listenNotifications(ch <-chan domain.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationReceived{notification: n}
	}
}

// Update implements tea.Model.
// It handles messages and updates the model state.
//
//nolint:gocognit,gocyclo,funlen // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.Quit:
		return a, tea.Quit

	case messages.StatusChanged:
		a.documentsView, cmd = a.documentsView.Update(msg)
		cmds := []tea.Cmd{cmd}
		a.statusBar.SetInFlight(a.inFlight())
		// With a notifications channel the services announce terminal
		// transitions themselves.
		if msg.Event.Terminal && a.ports.Notifications == nil {
			cmds = append(cmds, a.statusBar.Show(eventNotification(msg.Event)))
		}
		if a.statusEvents != nil {
			cmds = append(cmds, listenStatus(a.statusEvents))
		}
		return a, tea.Batch(cmds...)

	case notificationReceived:
		return a, tea.Batch(
			a.statusBar.Show(msg.notification),
			listenNotifications(a.ports.Notifications),
		)

	case messages.Notify, messages.ToastExpired:
		a.statusBar, cmd = a.statusBar.Update(msg)
		return a, cmd

	case messages.DocumentSelected:
		a.setView(messages.ViewDocContent)
		return a, a.docContentView.SetDocument(msg.Document)

	// Async results go to the view that requested them, even after the
	// user navigated away.
	case messages.DocumentsLoaded, messages.DocumentActionDone, messages.Tick:
		a.documentsView, cmd = a.documentsView.Update(msg)
		a.statusBar.SetInFlight(a.inFlight())
		return a, cmd

	case messages.ChunksLoaded:
		a.docContentView, cmd = a.docContentView.Update(msg)
		return a, cmd

	case messages.MessagesLoaded, messages.ChatReplied, messages.MessageRated, messages.ChatCleared:
		a.chatView, cmd = a.chatView.Update(msg)
		return a, cmd

	case messages.TopicSearchDue, messages.TopicsLoaded, messages.TopicDeleted, messages.RelationshipsLoaded:
		a.topicsView, cmd = a.topicsView.Update(msg)
		return a, cmd

	case messages.DashboardLoaded, messages.ReportLoaded:
		a.analyticsView, cmd = a.analyticsView.Update(msg)
		return a, cmd

	case messages.SettingsLoaded, messages.SettingSaved:
		a.settingsView, cmd = a.settingsView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
	}

	return a, a.forward(msg)
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global quit with ctrl+c
	if msg.String() == "ctrl+c" {
		return a, tea.Quit
	}

	if a.currentView == messages.ViewHelp {
		if keymap.Matches(msg.String(), a.keymap.Back) {
			a.setView(messages.ViewMenu)
		}
		return a, nil
	}

	if keymap.Matches(msg.String(), a.keymap.Help) && !a.typing() {
		a.setView(messages.ViewHelp)
		return a, nil
	}

	return a, a.forward(msg)
}

// forward passes msg to the active view.
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
	case messages.ViewDocContent:
		a.docContentView, cmd = a.docContentView.Update(msg)
	case messages.ViewChat:
		a.chatView, cmd = a.chatView.Update(msg)
	case messages.ViewTopics:
		a.topicsView, cmd = a.topicsView.Update(msg)
	case messages.ViewAnalytics:
		a.analyticsView, cmd = a.analyticsView.Update(msg)
	case messages.ViewSettings:
		a.settingsView, cmd = a.settingsView.Update(msg)
	case messages.ViewHelp:
		// Help view doesn't need to handle other messages
	}
	return cmd
}

// switchTo activates view and returns its initial load.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.setView(view)
	switch view {
	case messages.ViewDocuments:
		return a.documentsView.Init()
	case messages.ViewChat:
		return a.chatView.Init()
	case messages.ViewTopics:
		return a.topicsView.Init()
	case messages.ViewAnalytics:
		return a.analyticsView.Init()
	case messages.ViewSettings:
		return a.settingsView.Init()
	case messages.ViewMenu, messages.ViewDocContent, messages.ViewHelp:
		// Nothing to load
	}
	return nil
}

func (a *App) setView(view messages.ViewType) {
	a.currentView = view
	if view == messages.ViewDocuments {
		a.statusBar.SetBindings(a.keymap.DocumentsHelp())
		return
	}
	a.statusBar.SetBindings(nil)
}

// typing reports whether the active view has a focused text input.
func (a *App) typing() bool {
	switch a.currentView {
	case messages.ViewChat:
		return a.chatView.InputFocused()
	case messages.ViewTopics:
		return a.topicsView.InputFocused()
	case messages.ViewSettings:
		return a.settingsView.Editing() != ""
	}
	return false
}

func (a *App) inFlight() int {
	if a.ports.Poller == nil {
		return 0
	}
	return len(a.ports.Poller.InFlight(domain.PollProcessing)) + len(a.ports.Poller.InFlight(domain.PollReprocessing))
}

// eventNotification turns a terminal poller event into a toast.
func eventNotification(e domain.DocumentStatusEvent) domain.Notification {
	if e.Status == domain.StatusError {
		return domain.NewNotification(domain.LevelError, "Processing failed", e.Filename)
	}
	return domain.NewNotification(domain.LevelSuccess, "Processed", e.Filename)
}

// View implements tea.Model.
// It renders the current view above the status bar.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewMenu:
		body = a.menuView.View()
	case messages.ViewDocuments:
		body = a.documentsView.View()
	case messages.ViewDocContent:
		body = a.docContentView.View()
	case messages.ViewChat:
		body = a.chatView.View()
	case messages.ViewTopics:
		body = a.topicsView.View()
	case messages.ViewAnalytics:
		body = a.analyticsView.View()
	case messages.ViewSettings:
		body = a.settingsView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.menuView.View()
	}

	h := a.height - statusBarHeight
	if h < 1 {
		h = 1
	}
	body = lipgloss.NewStyle().Height(h).MaxHeight(h).Render(body)
	return body + "\n" + a.statusBar.View()
}

// viewHelp renders the help view from the keymap.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
		b.WriteString("\n")
	}
	b.WriteString(a.styles.Muted.Render("  ctrl+c     quit from anywhere"))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Run starts the TUI application and releases the poller subscription on exit.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	a.Close()
	return err
}

// Close cancels the poller subscription.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// StatusBar returns the status bar.
func (a *App) StatusBar() *status.Bar {
	return a.statusBar
}

// SetDimensions sets the terminal dimensions on every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	h := height - statusBarHeight
	a.menuView.SetDimensions(width, h)
	a.documentsView.SetDimensions(width, h)
	a.docContentView.SetDimensions(width, h)
	a.chatView.SetDimensions(width, h)
	a.topicsView.SetDimensions(width, h)
	a.analyticsView.SetDimensions(width, h)
	a.settingsView.SetDimensions(width, h)
	a.statusBar.SetWidth(width)
}
