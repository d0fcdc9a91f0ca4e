package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Ensure TopicStore implements the interface.
var _ driven.TopicStore = (*TopicStore)(nil)

// TopicStore is an in-memory implementation of driven.TopicStore.
// It remembers the order topics arrived in so listings keep backend order.
type TopicStore struct {
	mu     sync.RWMutex
	topics map[string]domain.Topic
	order  []string
}

// NewTopicStore creates a new in-memory topic store.
func NewTopicStore() *TopicStore {
	return &TopicStore{topics: make(map[string]domain.Topic)}
}

// ReplaceTopics swaps the whole collection.
func (s *TopicStore) ReplaceTopics(_ context.Context, topics []domain.Topic) error {
	next := make(map[string]domain.Topic, len(topics))
	order := make([]string, 0, len(topics))
	for i := range topics {
		id := topics[i].ID
		if id == "" {
			continue
		}
		if _, dup := next[id]; !dup {
			order = append(order, id)
		}
		next[id] = topics[i]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = next
	s.order = order
	return nil
}

// SaveTopic stores or updates a topic.
func (s *TopicStore) SaveTopic(_ context.Context, topic *domain.Topic) error {
	if topic == nil || topic.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topic.ID]; !ok {
		s.order = append(s.order, topic.ID)
	}
	s.topics[topic.ID] = *topic
	return nil
}

// GetTopic retrieves a topic by ID.
func (s *TopicStore) GetTopic(_ context.Context, id string) (*domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	topic, ok := s.topics[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &topic, nil
}

// DeleteTopic removes a topic.
func (s *TopicStore) DeleteTopic(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[id]; !ok {
		return nil
	}
	delete(s.topics, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListTopics returns topics in arrival order.
func (s *TopicStore) ListTopics(_ context.Context) ([]domain.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Topic, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.topics[id])
	}
	return result, nil
}
