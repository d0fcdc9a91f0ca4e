// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewDocuments lists uploaded documents and their status.
	ViewDocuments
	// ViewDocContent shows a document's metadata and chunks.
	ViewDocContent
	// ViewChat is the conversation with the backend.
	ViewChat
	// ViewTopics is the topic browser with live search.
	ViewTopics
	// ViewAnalytics shows backend health, the dashboard and reports.
	ViewAnalytics
	// ViewSettings is the settings configuration view.
	ViewSettings
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewDocuments:
		return "documents"
	case ViewDocContent:
		return "doc_content"
	case ViewChat:
		return "chat"
	case ViewTopics:
		return "topics"
	case ViewAnalytics:
		return "analytics"
	case ViewSettings:
		return "settings"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// Notify carries a toast to the status bar.
type Notify struct {
	Notification domain.Notification
}

// ToastExpired clears the toast with the given sequence number.
type ToastExpired struct {
	Seq int
}

// StatusChanged carries a poller transition.
type StatusChanged struct {
	Event domain.DocumentStatusEvent
}

// Tick drives elapsed-time display for in-flight documents.
type Tick struct{}

// DocumentsLoaded carries the document collection.
type DocumentsLoaded struct {
	Documents []domain.Document
	Err       error
}

// DocumentSelected signals a document was opened.
type DocumentSelected struct {
	Document domain.Document
}

// DocumentAction names an operation on a single document.
type DocumentAction string

const (
	ActionProcess   DocumentAction = "process"
	ActionReprocess DocumentAction = "reprocess"
	ActionDelete    DocumentAction = "delete"
)

// DocumentActionDone reports the outcome of a document operation.
type DocumentActionDone struct {
	DocumentID string
	Action     DocumentAction
	Err        error
}

// ChunksLoaded carries the chunks of a document.
type ChunksLoaded struct {
	DocumentID string
	Chunks     []domain.Chunk
	Err        error
}

// MessagesLoaded carries the stored conversation.
type MessagesLoaded struct {
	Messages []domain.ChatMessage
	Err      error
}

// ChatReplied carries the assistant's answer to a question.
type ChatReplied struct {
	Message *domain.ChatMessage
	Err     error
}

// MessageRated reports a rating change.
type MessageRated struct {
	MessageID string
	Rating    int
	Err       error
}

// ChatCleared reports the conversation was removed.
type ChatCleared struct {
	Err error
}

// TopicSearchDue fires after the search debounce. Seq identifies the
// keystroke that scheduled it; older ones are ignored.
type TopicSearchDue struct {
	Seq int
}

// TopicsLoaded carries topic search or listing results.
type TopicsLoaded struct {
	Seq    int
	Query  string
	Topics []domain.Topic
	Err    error
}

// TopicDeleted reports a topic removal.
type TopicDeleted struct {
	TopicID string
	Err     error
}

// RelationshipsLoaded carries the relationships of a topic.
type RelationshipsLoaded struct {
	TopicID       string
	Relationships []domain.TopicRelationship
	Err           error
}

// DashboardLoaded carries the analytics headline data.
type DashboardLoaded struct {
	Health    domain.SystemHealth
	Dashboard domain.DashboardSummary
	Err       error
}

// ReportLoaded carries one analytics report.
type ReportLoaded struct {
	Report domain.Report
	Err    error
}

// SettingsLoaded carries the application settings.
type SettingsLoaded struct {
	Settings *domain.AppSettings
	Err      error
}

// SettingSaved signals a setting was stored or removed.
type SettingSaved struct {
	Key string
	Err error
}
