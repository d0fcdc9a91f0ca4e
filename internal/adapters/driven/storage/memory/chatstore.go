package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Ensure ChatStore implements the interface.
var _ driven.ChatStore = (*ChatStore)(nil)

// ChatStore is an in-memory implementation of driven.ChatStore.
type ChatStore struct {
	mu       sync.RWMutex
	messages []domain.ChatMessage
	index    map[string]int
}

// NewChatStore creates a new in-memory chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{index: make(map[string]int)}
}

// AppendMessage adds a message to the end of the conversation.
func (s *ChatStore) AppendMessage(_ context.Context, msg *domain.ChatMessage) error {
	if msg == nil || msg.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[msg.ID]; exists {
		return domain.ErrInvalidInput
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, *msg)
	return nil
}

// GetMessage retrieves a message by ID.
func (s *ChatStore) GetMessage(_ context.Context, id string) (*domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	msg := s.messages[i]
	return &msg, nil
}

// UpdateRating sets a message's rating in place.
func (s *ChatStore) UpdateRating(_ context.Context, id string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.messages[i].Rating = rating
	return nil
}

// ListMessages returns all messages in append order.
func (s *ChatStore) ListMessages(_ context.Context) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// ClearMessages removes the whole conversation.
func (s *ChatStore) ClearMessages(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.index = make(map[string]int)
	return nil
}
