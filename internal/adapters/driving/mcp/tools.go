package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/services"
)

const defaultTopicLimit = 10

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string   `json:"question" jsonschema:"the question to answer from the knowledge base"`
	MaxTopics int      `json:"max_topics,omitempty" jsonschema:"how many topics to draw on (default 5)"`
	Detail    string   `json:"detail,omitempty" jsonschema:"brief, standard or detailed"`
	Reasoning bool     `json:"reasoning,omitempty" jsonschema:"include the model's reasoning"`
	Focus     []string `json:"focus_topics,omitempty" jsonschema:"topic names to prefer"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string         `json:"answer"`
	Reasoning string         `json:"reasoning,omitempty"`
	QueryID   string         `json:"query_id,omitempty"`
	Topics    []string       `json:"topics,omitempty"`
	Sources   []SourceOutput `json:"sources,omitempty"`
}

// SourceOutput is one citation.
type SourceOutput struct {
	Filename string  `json:"filename"`
	Page     int     `json:"page,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// DocumentsInput is the input schema for the documents tool.
type DocumentsInput struct {
	Status  string `json:"status,omitempty" jsonschema:"only documents with this status"`
	Refresh bool   `json:"refresh,omitempty" jsonschema:"reload the list from the backend first"`
}

// DocumentsOutput is the output schema for the documents tool.
type DocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput summarises one document.
type DocumentOutput struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Size     int64  `json:"size"`
	Chunks   int    `json:"chunks"`
}

// TopicSearchInput is the input schema for the topic_search tool.
type TopicSearchInput struct {
	Query string `json:"query" jsonschema:"text to search topic names and keywords for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of topics (default 10)"`
}

// TopicSearchOutput is the output schema for the topic_search tool.
type TopicSearchOutput struct {
	Topics []TopicOutput `json:"topics"`
	Count  int           `json:"count"`
}

// TopicOutput summarises one topic.
type TopicOutput struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Documents   int      `json:"documents"`
}

var errUnavailable = errors.New("not available in this server")

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the documents in the knowledge base",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "documents",
		Description: "List uploaded documents and their processing status",
	}, s.handleDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "topic_search",
		Description: "Search the topics extracted from the documents",
	}, s.handleTopicSearch)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	opts := domain.DefaultQueryOptions()
	if input.MaxTopics > 0 {
		opts.MaxTopics = input.MaxTopics
	}
	if input.Detail != "" {
		opts.DetailLevel = domain.DetailLevel(strings.ToLower(input.Detail))
	}
	opts.IncludeReasoning = input.Reasoning
	opts.FocusTopics = input.Focus

	msg, err := s.ports.Chat.Send(ctx, input.Question, opts)
	if err != nil {
		return nil, AskOutput{}, errors.New(services.UserMessage(err))
	}

	out := AskOutput{
		Answer:    msg.Content,
		Reasoning: msg.Reasoning,
		QueryID:   msg.QueryID,
	}
	for i := range msg.TopicAnalyses {
		out.Topics = append(out.Topics, msg.TopicAnalyses[i].TopicName)
	}
	for _, src := range msg.Sources {
		out.Sources = append(out.Sources, SourceOutput{Filename: src.Filename, Page: src.Page, Score: src.Score})
	}
	return nil, out, nil
}

func (s *Server) handleDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentsInput,
) (*mcp.CallToolResult, DocumentsOutput, error) {
	if s.ports.Document == nil {
		return nil, DocumentsOutput{}, errUnavailable
	}

	var (
		docs []domain.Document
		err  error
	)
	if input.Refresh {
		docs, err = s.ports.Document.Refresh(ctx)
	} else {
		docs, err = s.ports.Document.List(ctx)
	}
	if err != nil {
		return nil, DocumentsOutput{}, errors.New(services.UserMessage(err))
	}

	out := DocumentsOutput{Documents: make([]DocumentOutput, 0, len(docs))}
	for i := range docs {
		if input.Status != "" && string(docs[i].Status) != input.Status {
			continue
		}
		out.Documents = append(out.Documents, DocumentOutput{
			ID:       docs[i].ID,
			Filename: docs[i].Filename,
			Status:   string(docs[i].Status),
			Size:     docs[i].Size,
			Chunks:   docs[i].ChunkCount,
		})
	}
	out.Count = len(out.Documents)
	return nil, out, nil
}

func (s *Server) handleTopicSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TopicSearchInput,
) (*mcp.CallToolResult, TopicSearchOutput, error) {
	if s.ports.Topic == nil {
		return nil, TopicSearchOutput{}, errUnavailable
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultTopicLimit
	}

	topics, err := s.ports.Topic.Search(ctx, input.Query)
	if err != nil {
		return nil, TopicSearchOutput{}, errors.New(services.UserMessage(err))
	}
	if len(topics) > limit {
		topics = topics[:limit]
	}

	out := TopicSearchOutput{Topics: make([]TopicOutput, len(topics)), Count: len(topics)}
	for i := range topics {
		out.Topics[i] = TopicOutput{
			ID:          topics[i].ID,
			Name:        topics[i].Name,
			Description: topics[i].Description,
			Keywords:    topics[i].Keywords,
			Documents:   topics[i].DocumentCount,
		}
	}
	return nil, out, nil
}
