package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func TestTrimID(t *testing.T) {
	assert.Equal(t, "doc-1", trimID("ragdesk://documents/doc-1", "documents/"))
	assert.Equal(t, "", trimID("ragdesk://documents/doc-1/extra", "documents/"))
	assert.Equal(t, "", trimID("other://documents/doc-1", "documents/"))
	assert.Equal(t, "t1", trimID("ragdesk://topics/t1", "topics/"))
}

func TestHandleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("empty list without a document service", func(t *testing.T) {
		server, err := NewServer(&Ports{Chat: &mockChatService{}})
		require.NoError(t, err)

		res, err := server.handleDocumentsResource(ctx, readRequest("ragdesk://documents"))
		require.NoError(t, err)
		assert.Equal(t, "[]", res.Contents[0].Text)
	})

	t.Run("lists documents as JSON", func(t *testing.T) {
		docs := &mockDocumentService{docs: []domain.Document{{ID: "doc-1", Filename: "a.pdf"}}}
		server, err := NewServer(&Ports{Chat: &mockChatService{}, Document: docs})
		require.NoError(t, err)

		res, err := server.handleDocumentsResource(ctx, readRequest("ragdesk://documents"))
		require.NoError(t, err)
		assert.Equal(t, "application/json", res.Contents[0].MIMEType)
		assert.Contains(t, res.Contents[0].Text, `"filename": "a.pdf"`)
	})
}

func TestHandleDocumentTextResource(t *testing.T) {
	docs := &mockDocumentService{chunks: []domain.Chunk{{Content: "first"}, {Content: "second"}}}
	server, err := NewServer(&Ports{Chat: &mockChatService{}, Document: docs})
	require.NoError(t, err)

	res, err := server.handleDocumentTextResource(context.Background(), readRequest("ragdesk://documents/doc-1"))
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", res.Contents[0].Text)

	_, err = server.handleDocumentTextResource(context.Background(), readRequest("ragdesk://documents/"))
	assert.Error(t, err)

	docs.err = errors.New("boom")
	_, err = server.handleDocumentTextResource(context.Background(), readRequest("ragdesk://documents/doc-1"))
	assert.ErrorContains(t, err, "boom")
}

func TestHandleTopicResource(t *testing.T) {
	topics := &mockTopicService{
		topic:     &domain.Topic{ID: "t1", Name: "Billing"},
		relations: []domain.TopicRelationship{{TopicID: "t2", TopicName: "Refunds", Type: "related"}},
	}
	server, err := NewServer(&Ports{Chat: &mockChatService{}, Topic: topics})
	require.NoError(t, err)

	res, err := server.handleTopicResource(context.Background(), readRequest("ragdesk://topics/t1"))
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, `"name": "Billing"`)
	assert.Contains(t, res.Contents[0].Text, `"topic_name": "Refunds"`)
}
