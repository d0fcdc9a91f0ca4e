package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func newChatService(api *mockBackend) (*ChatService, *memory.ChatStore, *recordingNotifier) {
	store := memory.NewChatStore()
	notifier := &recordingNotifier{}
	svc := NewChatService(api, store, notifier)
	svc.now = func() time.Time { return fixedTime }
	return svc, store, notifier
}

const analysedAnswer = `{"success":true,"data":{"data":{
	"query_id":"q-1",
	"response":"<think>scratch</think>Revenue grew 10%.",
	"topic_analyses":[{"topic_id":"t1","topic_name":"Finance","similarity_score":0.9,
		"aggregated_summary":"Growth","batch_responses":["batch one"],
		"sources":[{"filename":"q3.pdf","page":4}]}],
	"sources":[{"filename":"q3.pdf","page":4}]
}}}`

func TestChatService_Send(t *testing.T) {
	var sent domain.QueryRequest
	api := &mockBackend{processQueryFn: func(req domain.QueryRequest) (json.RawMessage, error) {
		sent = req
		return json.RawMessage(analysedAnswer), nil
	}}
	svc, _, _ := newChatService(api)
	ctx := context.Background()

	reply, err := svc.Send(ctx, "  How did revenue change? ", domain.QueryOptions{IncludeReasoning: true})
	require.NoError(t, err)

	assert.Equal(t, "How did revenue change?", sent.Query)
	assert.Equal(t, 5, sent.MaxTopics)
	assert.Equal(t, domain.DetailStandard, sent.DetailLevel)
	assert.True(t, sent.IncludeReasoning)

	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, "Revenue grew 10%.", reply.Content)
	assert.Equal(t, "scratch", reply.Reasoning)
	assert.Equal(t, "q-1", reply.QueryID)
	require.Len(t, reply.TopicAnalyses, 1)

	msgs, err := svc.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
}

func TestChatService_SendEmpty(t *testing.T) {
	api := &mockBackend{}
	svc, _, _ := newChatService(api)

	_, err := svc.Send(context.Background(), "   ", domain.QueryOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, api.count("ProcessQuery"))
}

func TestChatService_SendUnrecognisedShapeRecordsFailure(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
		want error
	}{
		{"no data", `{"success":true,"data":{"items":[]}}`, nil, domain.ErrNoResponseData},
		{"empty answer", `{"response":"<think>only</think>"}`, nil, domain.ErrEmptyResponse},
		{"transport", ``, domain.ErrBackendUnavailable, domain.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockBackend{processQueryFn: func(domain.QueryRequest) (json.RawMessage, error) {
				return json.RawMessage(tt.raw), tt.err
			}}
			svc, _, notifier := newChatService(api)

			reply, err := svc.Send(context.Background(), "hello", domain.QueryOptions{})
			require.ErrorIs(t, err, tt.want)
			require.NotNil(t, reply)
			assert.True(t, reply.Failed)
			assert.Equal(t, FailedAnswerText, reply.Content)
			assert.Equal(t, domain.LevelError, notifier.last().Level)

			msgs, _ := svc.Messages(context.Background())
			assert.Len(t, msgs, 2)
		})
	}
}

func TestChatService_RateWithoutQueryID(t *testing.T) {
	api := &mockBackend{}
	svc, store, notifier := newChatService(api)
	ctx := context.Background()
	require.NoError(t, store.AppendMessage(ctx, &domain.ChatMessage{ID: "m1", Role: domain.RoleAssistant, Content: "hi"}))

	require.NoError(t, svc.Rate(ctx, "m1", 4))

	msg, err := store.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 4, msg.Rating)
	assert.Zero(t, api.count("RateQuery"))
	assert.Equal(t, ThanksMessage, notifier.last().Message)
	assert.Equal(t, domain.LevelSuccess, notifier.last().Level)
}

func TestChatService_RateWithQueryID(t *testing.T) {
	var rated string
	api := &mockBackend{rateFn: func(id string, rating int) error {
		rated = id
		return nil
	}}
	svc, store, _ := newChatService(api)
	ctx := context.Background()
	require.NoError(t, store.AppendMessage(ctx, &domain.ChatMessage{ID: "m1", Role: domain.RoleAssistant, QueryID: "q-7"}))

	require.NoError(t, svc.Rate(ctx, "m1", 5))
	assert.Equal(t, "q-7", rated)
}

func TestChatService_RateFailureKeepsRating(t *testing.T) {
	api := &mockBackend{rateFn: func(string, int) error { return errors.New("nope") }}
	svc, store, _ := newChatService(api)
	ctx := context.Background()
	require.NoError(t, store.AppendMessage(ctx, &domain.ChatMessage{ID: "m1", Role: domain.RoleAssistant, QueryID: "q-7"}))

	require.Error(t, svc.Rate(ctx, "m1", 2))
	msg, _ := store.GetMessage(ctx, "m1")
	assert.Zero(t, msg.Rating)

	assert.ErrorIs(t, svc.Rate(ctx, "m1", 9), domain.ErrInvalidInput)
}

func TestChatService_Regenerate(t *testing.T) {
	api := &mockBackend{processQueryFn: func(domain.QueryRequest) (json.RawMessage, error) {
		return json.RawMessage(analysedAnswer), nil
	}}
	svc, _, _ := newChatService(api)
	ctx := context.Background()

	first, err := svc.Send(ctx, "revenue?", domain.QueryOptions{})
	require.NoError(t, err)

	again, err := svc.Regenerate(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "again", again.Content)
	assert.Equal(t, 1, api.count("RegenerateQuery"))

	msgs, _ := svc.Messages(ctx)
	assert.Len(t, msgs, 3)
	_, err = svc.Regenerate(ctx, msgs[0].ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatService_RegenerateWithoutQueryIDResends(t *testing.T) {
	var queries []string
	api := &mockBackend{processQueryFn: func(req domain.QueryRequest) (json.RawMessage, error) {
		queries = append(queries, req.Query)
		return json.RawMessage(`{"response":"answer"}`), nil
	}}
	svc, _, _ := newChatService(api)
	ctx := context.Background()

	first, err := svc.Send(ctx, "what is rag?", domain.QueryOptions{})
	require.NoError(t, err)
	_, err = svc.Regenerate(ctx, first.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"what is rag?", "what is rag?"}, queries)
	assert.Zero(t, api.count("RegenerateQuery"))
}

func TestChatService_Analyze(t *testing.T) {
	var gotQuery string
	api := &mockBackend{
		processQueryFn: func(domain.QueryRequest) (json.RawMessage, error) {
			return json.RawMessage(analysedAnswer), nil
		},
		analyzeFn: func(action domain.AnalysisAction, query string, analyses []domain.TopicAnalysis) (string, error) {
			gotQuery = query
			return "<final_answer>Key insight</final_answer>", nil
		},
	}
	svc, _, _ := newChatService(api)
	ctx := context.Background()

	reply, err := svc.Send(ctx, "revenue?", domain.QueryOptions{})
	require.NoError(t, err)

	out, err := svc.Analyze(ctx, reply.ID, domain.ActionInsights)
	require.NoError(t, err)
	assert.Equal(t, "Key insight", out)
	assert.Equal(t, "revenue?", gotQuery)

	_, err = svc.Analyze(ctx, reply.ID, "translate")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatService_AnalyzeWithoutAnalyses(t *testing.T) {
	api := &mockBackend{}
	svc, _, _ := newChatService(api)
	ctx := context.Background()

	reply, err := svc.Send(ctx, "hi", domain.QueryOptions{})
	require.NoError(t, err)

	_, err = svc.Analyze(ctx, reply.ID, domain.ActionSummarize)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, api.count("AnalyzeTopics"))
}

func TestChatService_Export(t *testing.T) {
	api := &mockBackend{processQueryFn: func(domain.QueryRequest) (json.RawMessage, error) {
		return json.RawMessage(analysedAnswer), nil
	}}
	svc, _, _ := newChatService(api)
	ctx := context.Background()
	_, err := svc.Send(ctx, "revenue?", domain.QueryOptions{})
	require.NoError(t, err)

	md, err := svc.Export(ctx, domain.FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "## You\n\nrevenue?")
	assert.Contains(t, string(md), "Revenue grew 10%.")
	assert.Contains(t, string(md), "- q3.pdf, page 4")

	js, err := svc.Export(ctx, domain.FormatJSON)
	require.NoError(t, err)
	var doc struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(js, &doc))
	assert.Len(t, doc.Messages, 2)

	ym, err := svc.Export(ctx, domain.FormatYAML)
	require.NoError(t, err)
	var ydoc map[string]any
	require.NoError(t, yaml.Unmarshal(ym, &ydoc))
	assert.Contains(t, ydoc, "messages")

	_, err = svc.Export(ctx, domain.FormatCSV)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatService_ExportAnalyses(t *testing.T) {
	api := &mockBackend{processQueryFn: func(domain.QueryRequest) (json.RawMessage, error) {
		return json.RawMessage(analysedAnswer), nil
	}}
	svc, _, _ := newChatService(api)
	ctx := context.Background()
	reply, err := svc.Send(ctx, "revenue?", domain.QueryOptions{})
	require.NoError(t, err)

	md, err := svc.ExportAnalyses(ctx, reply.ID, domain.FormatMarkdown)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# Topic analyses"))
	assert.Contains(t, string(md), "## Finance (90%)")
	assert.Contains(t, string(md), "batch one")

	csv, err := svc.ExportAnalyses(ctx, reply.ID, domain.FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "q-1.csv", string(csv))
}

func TestChatService_Suggestions(t *testing.T) {
	api := &mockBackend{suggestionsFn: func(p string) ([]string, error) {
		return []string{p + " growth"}, nil
	}}
	svc, _, _ := newChatService(api)
	ctx := context.Background()

	assert.Empty(t, svc.Suggestions(ctx, "r"))
	assert.Zero(t, api.count("QuerySuggestions"))
	assert.Equal(t, []string{"revenue growth"}, svc.Suggestions(ctx, "revenue"))

	api.suggestionsFn = func(string) ([]string, error) { return nil, errors.New("x") }
	assert.NotNil(t, svc.Suggestions(ctx, "revenue"))
}

func TestChatService_HistoryNeverNil(t *testing.T) {
	api := &mockBackend{historyFn: func(int) ([]domain.QuerySummary, error) {
		return nil, domain.ErrBackendUnavailable
	}}
	svc, _, _ := newChatService(api)

	assert.NotNil(t, svc.History(context.Background(), 10))
	assert.NotNil(t, svc.Popular(context.Background(), 10))
	assert.NotNil(t, svc.SearchHistory(context.Background(), " "))
}

func TestChatService_Clear(t *testing.T) {
	svc, _, _ := newChatService(&mockBackend{})
	ctx := context.Background()
	_, err := svc.Send(ctx, "hi", domain.QueryOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx))
	msgs, err := svc.Messages(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
