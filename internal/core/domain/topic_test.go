package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComputeTopicStats_Empty tests stats over no topics
func TestComputeTopicStats_Empty(t *testing.T) {
	stats := ComputeTopicStats(nil)

	assert.Zero(t, stats.Total)
	assert.NotNil(t, stats.Categories)
	assert.Zero(t, stats.CoveragePct)
}

// TestComputeTopicStats tests derived category counts and coverage
func TestComputeTopicStats(t *testing.T) {
	topics := []Topic{
		{ID: "1", Category: "finance", ChunkCount: 4, DocumentCount: 2, Keywords: []string{"tax"}, Relevance: 0.9},
		{ID: "2", Category: "finance", ChunkCount: 1, DocumentCount: 1, Relevance: 0.5},
		{ID: "3", Category: "legal", ChunkCount: 2, DocumentCount: 1, Relevance: 0.4},
		{ID: "4", Relevance: 0.2},
	}

	stats := ComputeTopicStats(topics)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Empty)
	assert.Equal(t, 1, stats.WithKeywords)
	assert.Equal(t, 4, stats.TotalDocuments)
	assert.InDelta(t, 75.0, stats.CoveragePct, 0.001)
	assert.InDelta(t, 0.5, stats.AvgRelevance, 0.001)

	require.Len(t, stats.Categories, 3)
	assert.Equal(t, CategoryCount{Name: "finance", Count: 2}, stats.Categories[0])
	assert.Equal(t, CategoryCount{Name: "legal", Count: 1}, stats.Categories[1])
	assert.Equal(t, CategoryCount{Name: "uncategorized", Count: 1}, stats.Categories[2])
}

// TestTopicUpdate_Apply tests partial updates
func TestTopicUpdate_Apply(t *testing.T) {
	topic := Topic{Name: "old", Description: "keep", Category: "a"}
	name := "new"
	keywords := []string{"x", "y"}

	update := TopicUpdate{Name: &name, Keywords: &keywords}
	assert.False(t, update.IsEmpty())
	update.Apply(&topic)

	assert.Equal(t, "new", topic.Name)
	assert.Equal(t, "keep", topic.Description)
	assert.Equal(t, "a", topic.Category)
	assert.Equal(t, []string{"x", "y"}, topic.Keywords)

	assert.True(t, TopicUpdate{}.IsEmpty())
}

// TestTopicPage_HasNext tests pagination
func TestTopicPage_HasNext(t *testing.T) {
	assert.True(t, TopicPage{Page: 1, TotalPages: 2}.HasNext())
	assert.False(t, TopicPage{Page: 2, TotalPages: 2}.HasNext())
}
