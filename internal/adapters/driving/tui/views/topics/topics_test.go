package topics

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

type MockTopicService struct {
	driving.TopicService

	ListFunc          func(ctx context.Context, f domain.TopicFilter) (domain.TopicPage, error)
	SearchFunc        func(ctx context.Context, q string) ([]domain.Topic, error)
	RelationshipsFunc func(ctx context.Context, id string) ([]domain.TopicRelationship, error)
	DeleteFunc        func(ctx context.Context, id string) error
}

func (m *MockTopicService) List(ctx context.Context, f domain.TopicFilter) (domain.TopicPage, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	return domain.TopicPage{Topics: []domain.Topic{}}, nil
}

func (m *MockTopicService) Search(ctx context.Context, q string) ([]domain.Topic, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q)
	}
	return []domain.Topic{}, nil
}

func (m *MockTopicService) Relationships(ctx context.Context, id string) ([]domain.TopicRelationship, error) {
	if m.RelationshipsFunc != nil {
		return m.RelationshipsFunc(ctx, id)
	}
	return []domain.TopicRelationship{}, nil
}

func (m *MockTopicService) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func sampleTopics() []domain.Topic {
	return []domain.Topic{
		{ID: "t1", Name: "Finance", Category: "business", DocumentCount: 3, ChunkCount: 40, Keywords: []string{"revenue"}},
		{ID: "t2", Name: "Hiring", DocumentCount: 1, ChunkCount: 5},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_InitListsFirstPage(t *testing.T) {
	var filter domain.TopicFilter
	svc := &MockTopicService{ListFunc: func(_ context.Context, f domain.TopicFilter) (domain.TopicPage, error) {
		filter = f
		return domain.TopicPage{Topics: sampleTopics()}, nil
	}}
	v := NewView(nil, nil, svc)

	v.Init()
	v.Update(v.search(v.Seq(), "")())

	assert.Equal(t, domain.TopicFilter{Page: 1, Limit: PageSize}, filter)
	assert.Len(t, v.Results(), 2)
	out := v.View()
	assert.Contains(t, out, "Topics (2)")
	assert.Contains(t, out, "Finance")
	assert.Contains(t, out, "uncategorized")
}

func TestView_TypingDebouncesSearch(t *testing.T) {
	var queries []string
	svc := &MockTopicService{SearchFunc: func(_ context.Context, q string) ([]domain.Topic, error) {
		queries = append(queries, q)
		return sampleTopics()[:1], nil
	}}
	v := NewView(nil, nil, svc)

	v.Update(runes("f"))
	first := v.Seq()
	v.Update(runes("i"))
	latest := v.Seq()
	require.Greater(t, latest, first)

	// The first keystroke's timer fires late and is ignored.
	_, cmd := v.Update(messages.TopicSearchDue{Seq: first})
	assert.Nil(t, cmd)

	_, cmd = v.Update(messages.TopicSearchDue{Seq: latest})
	require.NotNil(t, cmd)
	v.Update(cmd())

	assert.Equal(t, []string{"fi"}, queries)
	assert.Len(t, v.Results(), 1)
}

func TestView_StaleResultsDiscarded(t *testing.T) {
	v := NewView(nil, nil, &MockTopicService{})
	v.Update(runes("a"))
	old := v.Seq()
	v.Update(runes("b"))

	v.Update(messages.TopicsLoaded{Seq: old, Query: "a", Topics: sampleTopics()})
	assert.Empty(t, v.Results())

	v.Update(messages.TopicsLoaded{Seq: v.Seq(), Query: "ab", Topics: sampleTopics()[1:]})
	require.Len(t, v.Results(), 1)
	assert.Equal(t, "t2", v.Results()[0].ID)
}

func TestView_BlankQueryFallsBackToListing(t *testing.T) {
	listed, searched := false, false
	svc := &MockTopicService{
		ListFunc: func(context.Context, domain.TopicFilter) (domain.TopicPage, error) {
			listed = true
			return domain.TopicPage{Topics: sampleTopics()}, nil
		},
		SearchFunc: func(context.Context, string) ([]domain.Topic, error) {
			searched = true
			return nil, nil
		},
	}
	v := NewView(nil, nil, svc)

	v.search(1, "   ")()

	assert.True(t, listed)
	assert.False(t, searched)
}

func TestView_NoMatches(t *testing.T) {
	v := NewView(nil, nil, &MockTopicService{})
	v.Update(runes("z"))

	v.Update(messages.TopicsLoaded{Seq: v.Seq(), Query: "z", Topics: []domain.Topic{}})

	assert.Contains(t, v.View(), `No topics match "z"`)
}

func TestView_SearchErrorKeepsResults(t *testing.T) {
	v := NewView(nil, nil, &MockTopicService{})
	v.Update(messages.TopicsLoaded{Seq: v.Seq(), Topics: sampleTopics()})

	v.Update(messages.TopicsLoaded{Seq: v.Seq(), Err: errors.New("timeout")})

	assert.Len(t, v.Results(), 2)
	assert.Contains(t, v.View(), "Error: timeout")
}

func TestView_EnterShowsRelationships(t *testing.T) {
	svc := &MockTopicService{RelationshipsFunc: func(_ context.Context, id string) ([]domain.TopicRelationship, error) {
		return []domain.TopicRelationship{{TopicID: "t2", TopicName: "Hiring", Type: "related", Strength: 0.5}}, nil
	}}
	v := NewView(nil, nil, svc)
	v.SetDimensions(100, 40)
	v.Update(messages.TopicsLoaded{Seq: v.Seq(), Topics: sampleTopics()})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	v.Update(cmd())

	out := v.View()
	assert.Contains(t, out, "keywords: revenue")
	assert.Contains(t, out, "related Hiring (0.50)")

	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.NotContains(t, v.View(), "keywords: revenue")
}

func TestView_DeleteWithConfirmation(t *testing.T) {
	var deleted string
	svc := &MockTopicService{DeleteFunc: func(_ context.Context, id string) error {
		deleted = id
		return nil
	}}
	v := NewView(nil, nil, svc)
	v.Update(messages.TopicsLoaded{Seq: v.Seq(), Topics: sampleTopics()})
	v.Update(tea.KeyMsg{Type: tea.KeyTab})

	v.Update(runes("d"))
	assert.Contains(t, v.View(), `Delete topic "Finance"?`)

	_, cmd := v.Update(runes("y"))
	require.NotNil(t, cmd)
	v.Update(cmd())

	assert.Equal(t, "t1", deleted)
	require.Len(t, v.Results(), 1)
	assert.Equal(t, "t2", v.Results()[0].ID)
}

func TestView_ListModeReload(t *testing.T) {
	v := NewView(nil, nil, &MockTopicService{})
	v.Update(tea.KeyMsg{Type: tea.KeyTab})
	before := v.Seq()

	_, cmd := v.Update(runes("r"))

	require.NotNil(t, cmd)
	assert.Equal(t, before+1, v.Seq())
	loaded, ok := cmd().(messages.TopicsLoaded)
	require.True(t, ok)
	assert.Equal(t, v.Seq(), loaded.Seq)
}

func TestView_EscGoesToMenu(t *testing.T) {
	v := NewView(nil, nil, &MockTopicService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}
