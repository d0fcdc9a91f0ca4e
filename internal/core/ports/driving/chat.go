package driving

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// ChatService runs the conversation with the backend.
type ChatService interface {
	// Send records the user's question, queries the backend and records
	// the answer. A failed query still appends an assistant message,
	// flagged Failed, carrying a generic error text.
	Send(ctx context.Context, query string, opts domain.QueryOptions) (*domain.ChatMessage, error)

	// Regenerate asks the backend to answer an earlier message again.
	Regenerate(ctx context.Context, messageID string) (*domain.ChatMessage, error)

	// Rate sets a message's rating.
	Rate(ctx context.Context, messageID string, rating int) error

	// Messages returns the conversation in order.
	Messages(ctx context.Context) ([]domain.ChatMessage, error)

	// Clear removes the conversation.
	Clear(ctx context.Context) error

	// Analyze runs an action over a message's topic analyses.
	Analyze(ctx context.Context, messageID string, action domain.AnalysisAction) (string, error)

	// Export renders the conversation in the given format.
	Export(ctx context.Context, format domain.ExportFormat) ([]byte, error)

	// ExportAnalyses renders one message's topic analyses.
	ExportAnalyses(ctx context.Context, messageID string, format domain.ExportFormat) ([]byte, error)

	Suggestions(ctx context.Context, partial string) []string
	History(ctx context.Context, limit int) []domain.QuerySummary
	Popular(ctx context.Context, limit int) []domain.QuerySummary
	SearchHistory(ctx context.Context, text string) []domain.QuerySummary
}
