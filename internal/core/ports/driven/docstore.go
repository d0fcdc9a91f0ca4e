package driven

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// DocumentStore holds the local document collection.
type DocumentStore interface {
	// ReplaceDocuments swaps the whole collection for a fresh backend listing.
	ReplaceDocuments(ctx context.Context, docs []domain.Document) error

	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns documents ordered by upload time, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// TopicStore holds the local topic collection.
type TopicStore interface {
	ReplaceTopics(ctx context.Context, topics []domain.Topic) error
	SaveTopic(ctx context.Context, topic *domain.Topic) error
	GetTopic(ctx context.Context, id string) (*domain.Topic, error)
	DeleteTopic(ctx context.Context, id string) error
	ListTopics(ctx context.Context) ([]domain.Topic, error)
}

// ChatStore persists the conversation.
// Messages are returned in append order.
type ChatStore interface {
	// AppendMessage adds a message to the end of the conversation.
	AppendMessage(ctx context.Context, msg *domain.ChatMessage) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*domain.ChatMessage, error)

	// UpdateRating sets a message's rating in place.
	UpdateRating(ctx context.Context, id string, rating int) error

	// ListMessages returns all messages in creation order.
	ListMessages(ctx context.Context) ([]domain.ChatMessage, error)

	// ClearMessages removes the whole conversation.
	ClearMessages(ctx context.Context) error
}
