package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// FailedAnswerText is the assistant text recorded for a failed query.
const FailedAnswerText = "Sorry, I could not produce an answer. Please try again."

// ThanksMessage is shown after a rating is recorded.
const ThanksMessage = "Thanks for your feedback!"

// minSuggestionLength is the shortest prefix worth asking suggestions for.
const minSuggestionLength = 2

// ChatService runs the conversation with the backend.
type ChatService struct {
	api      driven.QueryAPI
	store    driven.ChatStore
	notifier driven.Notifier
	now      func() time.Time
}

// NewChatService creates a new chat service.
func NewChatService(api driven.QueryAPI, store driven.ChatStore, notifier driven.Notifier) *ChatService {
	return &ChatService{api: api, store: store, notifier: notifier, now: time.Now}
}

// Send records the question, asks the backend and records the answer.
// When the query fails the assistant message is still recorded, flagged
// Failed, and returned together with the error.
func (s *ChatService) Send(ctx context.Context, query string, opts domain.QueryOptions) (*domain.ChatMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	opts = withQueryDefaults(opts)

	question := &domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   query,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendMessage(ctx, question); err != nil {
		return nil, err
	}

	raw, err := s.api.ProcessQuery(ctx, domain.QueryRequest{Query: query, QueryOptions: opts})
	return s.answer(ctx, raw, err)
}

// Regenerate answers the question behind an assistant message again.
// Messages without a backend query ID are resent as a new query.
func (s *ChatService) Regenerate(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Role != domain.RoleAssistant {
		return nil, fmt.Errorf("%w: only answers can be regenerated", domain.ErrInvalidInput)
	}

	if msg.QueryID == "" {
		question, err := s.questionFor(ctx, messageID)
		if err != nil {
			return nil, err
		}
		raw, err := s.api.ProcessQuery(ctx, domain.QueryRequest{
			Query:        question,
			QueryOptions: domain.DefaultQueryOptions(),
		})
		return s.answer(ctx, raw, err)
	}

	raw, err := s.api.RegenerateQuery(ctx, msg.QueryID, domain.DefaultQueryOptions())
	return s.answer(ctx, raw, err)
}

// answer normalises a query response and appends the assistant message.
func (s *ChatService) answer(ctx context.Context, raw []byte, callErr error) (*domain.ChatMessage, error) {
	var result *domain.QueryResult
	err := callErr
	if err == nil {
		result, err = NormaliseQueryResponse(raw)
	}

	reply := &domain.ChatMessage{
		ID:        uuid.NewString(),
		Role:      domain.RoleAssistant,
		CreatedAt: s.now(),
	}
	if err != nil {
		reply.Content = FailedAnswerText
		reply.Failed = true
	} else {
		reply.Content = result.Response
		reply.Reasoning = result.Reasoning
		reply.TopicAnalyses = result.TopicAnalyses
		reply.Sources = result.Sources
		reply.QueryID = result.QueryID
	}

	if storeErr := s.store.AppendMessage(ctx, reply); storeErr != nil {
		return nil, storeErr
	}
	if err != nil {
		notifyError(s.notifier, "Query failed", err)
		return reply, fmt.Errorf("query: %w", err)
	}
	return reply, nil
}

// Rate records a rating. Messages that never reached the backend are
// rated locally only.
func (s *ChatService) Rate(ctx context.Context, messageID string, rating int) error {
	if !domain.ValidRating(rating) {
		return fmt.Errorf("%w: rating must be between %d and %d",
			domain.ErrInvalidInput, domain.MinRating, domain.MaxRating)
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if msg.QueryID != "" {
		if err := s.api.RateQuery(ctx, msg.QueryID, rating); err != nil {
			notifyError(s.notifier, "Rating failed", err)
			return fmt.Errorf("rate %s: %w", msg.QueryID, err)
		}
	}

	if err := s.store.UpdateRating(ctx, messageID, rating); err != nil {
		return err
	}
	notify(s.notifier, domain.LevelSuccess, "Rated", ThanksMessage)
	return nil
}

// Messages returns the conversation in order.
func (s *ChatService) Messages(ctx context.Context) ([]domain.ChatMessage, error) {
	msgs, err := s.store.ListMessages(ctx)
	if err != nil {
		return []domain.ChatMessage{}, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// Clear removes the conversation.
func (s *ChatService) Clear(ctx context.Context) error {
	return s.store.ClearMessages(ctx)
}

// Analyze runs a summarize, analyze or insights action over the topic
// analyses of an answer.
func (s *ChatService) Analyze(ctx context.Context, messageID string, action domain.AnalysisAction) (string, error) {
	if !action.IsValid() {
		return "", fmt.Errorf("%w: unknown action %q", domain.ErrInvalidInput, action)
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return "", err
	}
	if len(msg.TopicAnalyses) == 0 {
		return "", fmt.Errorf("%w: message has no topic analyses", domain.ErrInvalidInput)
	}

	question, err := s.questionFor(ctx, messageID)
	if err != nil {
		return "", err
	}

	out, err := s.api.AnalyzeTopics(ctx, action, question, msg.TopicAnalyses)
	if err != nil {
		notifyError(s.notifier, "Analysis failed", err)
		return "", err
	}
	out = SanitizeAnswer(out)
	if out == "" {
		notify(s.notifier, domain.LevelError, "Analysis failed", GenericErrorMessage)
		return "", domain.ErrEmptyResponse
	}
	return out, nil
}

// Export renders the conversation.
func (s *ChatService) Export(ctx context.Context, format domain.ExportFormat) ([]byte, error) {
	msgs, err := s.Messages(ctx)
	if err != nil {
		return nil, err
	}
	return renderTranscript(msgs, format, s.now())
}

// ExportAnalyses renders the topic analyses of one answer. CSV is
// produced by the backend export of the underlying query.
func (s *ChatService) ExportAnalyses(ctx context.Context, messageID string, format domain.ExportFormat) ([]byte, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if format == domain.FormatCSV {
		if msg.QueryID == "" {
			return nil, fmt.Errorf("%w: csv export needs an answer stored by the backend", domain.ErrInvalidInput)
		}
		out, err := s.api.ExportQuery(ctx, msg.QueryID, format)
		if err != nil {
			notifyError(s.notifier, "Export failed", err)
			return nil, err
		}
		return out, nil
	}

	question, _ := s.questionFor(ctx, messageID)
	return renderAnalyses(question, msg, format)
}

// Suggestions returns query completions for partial. Failures yield none.
func (s *ChatService) Suggestions(ctx context.Context, partial string) []string {
	partial = strings.TrimSpace(partial)
	if len(partial) < minSuggestionLength {
		return []string{}
	}
	out, err := s.api.QuerySuggestions(ctx, partial)
	if err != nil {
		logger.Warn("chat: suggestions: %v", err)
		return []string{}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// History returns recent backend queries.
func (s *ChatService) History(ctx context.Context, limit int) []domain.QuerySummary {
	return summaries(s.api.QueryHistory(ctx, limit))
}

// Popular returns the most frequent backend queries.
func (s *ChatService) Popular(ctx context.Context, limit int) []domain.QuerySummary {
	return summaries(s.api.PopularQueries(ctx, limit))
}

// SearchHistory searches past queries by text.
func (s *ChatService) SearchHistory(ctx context.Context, text string) []domain.QuerySummary {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.History(ctx, 0)
	}
	return summaries(s.api.SearchQueries(ctx, text))
}

// questionFor returns the user question preceding messageID.
func (s *ChatService) questionFor(ctx context.Context, messageID string) (string, error) {
	msgs, err := s.store.ListMessages(ctx)
	if err != nil {
		return "", err
	}
	idx := -1
	for i := range msgs {
		if msgs[i].ID == messageID {
			idx = i
			break
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleUser {
			return msgs[i].Content, nil
		}
	}
	return "", fmt.Errorf("%w: no question found for message %s", domain.ErrNotFound, messageID)
}

func summaries(out []domain.QuerySummary, err error) []domain.QuerySummary {
	if err != nil {
		logger.Warn("chat: query listing: %v", err)
		return []domain.QuerySummary{}
	}
	if out == nil {
		return []domain.QuerySummary{}
	}
	return out
}

func withQueryDefaults(opts domain.QueryOptions) domain.QueryOptions {
	defaults := domain.DefaultQueryOptions()
	if opts.MaxTopics <= 0 {
		opts.MaxTopics = defaults.MaxTopics
	}
	if opts.DetailLevel == "" {
		opts.DetailLevel = defaults.DetailLevel
	}
	return opts
}
