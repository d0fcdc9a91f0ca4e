package mcp

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// mockChatService embeds the interface; only Send is implemented.
type mockChatService struct {
	driving.ChatService
	msg      *domain.ChatMessage
	err      error
	gotQuery string
	gotOpts  domain.QueryOptions
}

func (m *mockChatService) Send(_ context.Context, query string, opts domain.QueryOptions) (*domain.ChatMessage, error) {
	m.gotQuery = query
	m.gotOpts = opts
	return m.msg, m.err
}

type mockDocumentService struct {
	driving.DocumentService
	docs      []domain.Document
	chunks    []domain.Chunk
	err       error
	refreshed bool
}

func (m *mockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

func (m *mockDocumentService) Refresh(_ context.Context) ([]domain.Document, error) {
	m.refreshed = true
	return m.docs, m.err
}

func (m *mockDocumentService) Chunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

type mockTopicService struct {
	driving.TopicService
	topics    []domain.Topic
	topic     *domain.Topic
	relations []domain.TopicRelationship
	err       error
}

func (m *mockTopicService) Search(_ context.Context, _ string) ([]domain.Topic, error) {
	return m.topics, m.err
}

func (m *mockTopicService) Get(_ context.Context, _ string) (*domain.Topic, error) {
	return m.topic, m.err
}

func (m *mockTopicService) Relationships(_ context.Context, _ string) ([]domain.TopicRelationship, error) {
	return m.relations, m.err
}
