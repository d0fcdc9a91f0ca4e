// Package tui provides an interactive terminal user interface for ragdesk.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"fmt"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Documents manages uploads, processing and the local collection.
	Documents driving.DocumentService

	// Poller reports background processing. Optional.
	Poller driving.StatusPoller

	// Chat sends questions and manages the conversation.
	Chat driving.ChatService

	// Topics browses and maintains backend topics.
	Topics driving.TopicService

	// Analytics reads backend health and reports.
	Analytics driving.AnalyticsService

	// Settings manages application settings. Optional.
	Settings driving.SettingsService

	// Notifications delivers service notifications as toasts. Optional;
	// without it the TUI derives toasts from poller events.
	Notifications <-chan domain.Notification
}

// NewPorts creates a new Ports aggregate with the required services.
func NewPorts(
	documents driving.DocumentService,
	chat driving.ChatService,
	topics driving.TopicService,
	analytics driving.AnalyticsService,
) *Ports {
	return &Ports{
		Documents: documents,
		Chat:      chat,
		Topics:    topics,
		Analytics: analytics,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Documents == nil {
		return fmt.Errorf("%w: %w", ErrInvalidPorts, ErrMissingDocumentService)
	}
	if p.Chat == nil {
		return fmt.Errorf("%w: %w", ErrInvalidPorts, ErrMissingChatService)
	}
	if p.Topics == nil {
		return fmt.Errorf("%w: %w", ErrInvalidPorts, ErrMissingTopicService)
	}
	if p.Analytics == nil {
		return fmt.Errorf("%w: %w", ErrInvalidPorts, ErrMissingAnalyticsService)
	}
	return nil
}
