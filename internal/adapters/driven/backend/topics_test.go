package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func TestListTopics_Pagination(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "legal", r.URL.Query().Get("category"))
		_, _ = io.WriteString(w, `{"success": true, "data": {"topics": [{"id": "t1", "name": "Contracts"}], "total": 25}}`)
	})

	page, err := c.ListTopics(context.Background(), domain.TopicFilter{Page: 2, Limit: 10, Category: "legal"})

	require.NoError(t, err)
	require.Len(t, page.Topics, 1)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext())
}

func TestListTopics_ErrorReturnsEmptyPage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	page, err := c.ListTopics(context.Background(), domain.TopicFilter{})

	require.Error(t, err)
	assert.NotNil(t, page.Topics)
	assert.Equal(t, 1, page.Page)
}

func TestTopicCategories_Mixed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "data": {"categories": ["finance", {"category": "legal", "topic_count": 4}]}}`)
	})

	cats, err := c.TopicCategories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []domain.CategoryCount{{Name: "finance"}, {Name: "legal", Count: 4}}, cats)
}

func TestSearchTopics_Query(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tax law", r.URL.Query().Get("q"))
		_, _ = io.WriteString(w, `{"success": true, "data": {"results": [{"id": "t1"}]}}`)
	})

	topics, err := c.SearchTopics(context.Background(), "tax law")

	require.NoError(t, err)
	require.Len(t, topics, 1)
}

func TestUpdateTopic_SendsOnlySetFields(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"success": true, "data": {"id": "t1", "name": "Renamed"}}`)
	})
	name := "Renamed"

	topic, err := c.UpdateTopic(context.Background(), "t1", domain.TopicUpdate{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Renamed"}, body)
	assert.Equal(t, "Renamed", topic.Name)
}

func TestAutoDeduplicateTopics(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"success": true, "data": {"groups_found": 2, "topics_merged": 0}}`)
	})

	report, err := c.AutoDeduplicateTopics(context.Background(), 0.85, true)

	require.NoError(t, err)
	assert.Equal(t, true, body["dry_run"])
	assert.InDelta(t, 0.85, body["similarity_threshold"], 0.0001)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.GroupsFound)
}

func TestBulkMergeTopics_Counts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "data": {"successful": 1, "failed": 1}}`)
	})

	res, err := c.BulkMergeTopics(context.Background(), []domain.MergeRequest{
		{SourceIDs: []string{"a"}, TargetID: "b"},
		{SourceIDs: []string{"c"}, TargetID: "d"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.BatchResult{Succeeded: 1, Failed: 1}, res)
}
