package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func newTopicService(api *mockBackend) (*TopicService, *memory.TopicStore, *recordingNotifier) {
	store := memory.NewTopicStore()
	notifier := &recordingNotifier{}
	return NewTopicService(api, store, notifier), store, notifier
}

func sampleTopics() []domain.Topic {
	return []domain.Topic{
		{ID: "t1", Name: "Finance", Category: "business", ChunkCount: 4, Keywords: []string{"money"}},
		{ID: "t2", Name: "Hiring", Category: "business", ChunkCount: 2},
		{ID: "t3", Name: "Empty"},
	}
}

func TestTopicService_SearchBlankFallsBackToList(t *testing.T) {
	api := &mockBackend{listTopicsFn: func(context.Context, domain.TopicFilter) (domain.TopicPage, error) {
		return domain.TopicPage{Topics: sampleTopics(), Page: 1, TotalPages: 1}, nil
	}}
	svc, _, _ := newTopicService(api)

	for _, q := range []string{"", "   ", "\t\n"} {
		topics, err := svc.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Len(t, topics, 3)
	}
	assert.Zero(t, api.count("SearchTopics"))
	assert.Equal(t, 3, api.count("ListTopics"))
}

func TestTopicService_SearchStoresResults(t *testing.T) {
	var got string
	api := &mockBackend{searchFn: func(_ context.Context, q string) ([]domain.Topic, error) {
		got = q
		return sampleTopics()[:1], nil
	}}
	svc, store, _ := newTopicService(api)

	topics, err := svc.Search(context.Background(), "  finance ")
	require.NoError(t, err)
	assert.Equal(t, "finance", got)
	assert.Len(t, topics, 1)

	stored, _ := store.ListTopics(context.Background())
	assert.Len(t, stored, 1)
}

func TestTopicService_NewerSearchSupersedes(t *testing.T) {
	release := make(chan struct{})
	api := &mockBackend{searchFn: func(ctx context.Context, q string) ([]domain.Topic, error) {
		if q == "slow" {
			<-release
			return []domain.Topic{{ID: "stale", Name: "stale"}}, nil
		}
		return []domain.Topic{{ID: "fresh", Name: "fresh"}}, nil
	}}
	svc, store, notifier := newTopicService(api)
	ctx := context.Background()

	type outcome struct {
		topics []domain.Topic
		err    error
	}
	slow := make(chan outcome, 1)
	go func() {
		topics, err := svc.Search(ctx, "slow")
		slow <- outcome{topics, err}
	}()
	require.Eventually(t, func() bool { return api.count("SearchTopics") == 1 }, time.Second, time.Millisecond)

	fresh, err := svc.Search(ctx, "fast")
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	close(release)
	res := <-slow
	assert.ErrorIs(t, res.err, ErrSuperseded)
	assert.Empty(t, res.topics)

	stored, _ := store.ListTopics(ctx)
	require.Len(t, stored, 1)
	assert.Equal(t, "fresh", stored[0].ID)
	assert.Empty(t, notifier.all())
}

func TestTopicService_ListErrorKeepsState(t *testing.T) {
	api := &mockBackend{listTopicsFn: func(context.Context, domain.TopicFilter) (domain.TopicPage, error) {
		return domain.TopicPage{}, errors.New("server said no")
	}}
	svc, store, notifier := newTopicService(api)
	ctx := context.Background()
	require.NoError(t, store.ReplaceTopics(ctx, sampleTopics()))

	page, err := svc.List(ctx, domain.TopicFilter{Page: 2})
	require.Error(t, err)
	assert.NotNil(t, page.Topics)

	stored, _ := store.ListTopics(ctx)
	assert.Len(t, stored, 3)
	assert.Equal(t, "server said no", notifier.last().Message)
}

func TestTopicService_Update(t *testing.T) {
	api := &mockBackend{}
	svc, store, _ := newTopicService(api)
	ctx := context.Background()
	require.NoError(t, store.ReplaceTopics(ctx, sampleTopics()))

	name := "Money"
	topic, err := svc.Update(ctx, "t1", domain.TopicUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Money", topic.Name)
	assert.Equal(t, "business", topic.Category)

	_, err = svc.Update(ctx, "t1", domain.TopicUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	blank := " "
	_, err = svc.Update(ctx, "t1", domain.TopicUpdate{Name: &blank})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, api.count("UpdateTopic"))
}

func TestTopicService_Merge(t *testing.T) {
	api := &mockBackend{mergeFn: func(req domain.MergeRequest) (*domain.Topic, error) {
		return &domain.Topic{ID: req.TargetID, Name: req.NewName}, nil
	}}
	svc, store, notifier := newTopicService(api)
	ctx := context.Background()
	require.NoError(t, store.ReplaceTopics(ctx, sampleTopics()))

	merged, err := svc.Merge(ctx, domain.MergeRequest{SourceIDs: []string{"t2", "t1"}, TargetID: "t1", NewName: "Business"})
	require.NoError(t, err)
	assert.Equal(t, "Business", merged.Name)

	stored, _ := store.ListTopics(ctx)
	ids := make([]string, 0, len(stored))
	for _, topic := range stored {
		ids = append(ids, topic.ID)
	}
	assert.ElementsMatch(t, []string{"t1", "t3"}, ids)
	assert.Contains(t, notifier.last().Message, "Business")
}

func TestTopicService_MergeValidation(t *testing.T) {
	api := &mockBackend{}
	svc, _, _ := newTopicService(api)

	_, err := svc.Merge(context.Background(), domain.MergeRequest{SourceIDs: []string{"a"}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.Merge(context.Background(), domain.MergeRequest{SourceIDs: []string{"a"}, TargetID: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, api.count("MergeTopics"))
}

func TestTopicService_BulkMergeCounts(t *testing.T) {
	reqs := []domain.MergeRequest{
		{SourceIDs: []string{"a"}, TargetID: "b"},
		{SourceIDs: []string{"c"}, TargetID: "d"},
	}

	api := &mockBackend{bulkMergeFn: func([]domain.MergeRequest) (domain.BatchResult, error) {
		return domain.BatchResult{Succeeded: 5, Failed: 1}, nil
	}}
	svc, _, _ := newTopicService(api)
	got := svc.BulkMerge(context.Background(), reqs)
	assert.Equal(t, domain.BatchResult{Succeeded: 1, Failed: 1}, got)

	api.bulkMergeFn = func([]domain.MergeRequest) (domain.BatchResult, error) {
		return domain.BatchResult{}, errors.New("down")
	}
	got = svc.BulkMerge(context.Background(), reqs)
	assert.Equal(t, 2, got.Failed)
	assert.Equal(t, 2, got.Total())
}

func TestTopicService_CleanupEmpty(t *testing.T) {
	api := &mockBackend{cleanupFn: func() (domain.CleanupReport, error) {
		return domain.CleanupReport{Removed: 1, RemovedIDs: []string{"t3"}}, nil
	}}
	svc, store, _ := newTopicService(api)
	ctx := context.Background()
	require.NoError(t, store.ReplaceTopics(ctx, sampleTopics()))

	report, err := svc.CleanupEmpty(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)

	_, err = store.GetTopic(ctx, "t3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTopicService_AutoDeduplicate(t *testing.T) {
	api := &mockBackend{dedupeFn: func(_ float64, dryRun bool) (domain.DeduplicateReport, error) {
		return domain.DeduplicateReport{DryRun: dryRun, GroupsFound: 2, TopicsMerged: 3}, nil
	}}
	svc, _, notifier := newTopicService(api)
	ctx := context.Background()

	report, err := svc.AutoDeduplicate(ctx, 0.9, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Zero(t, api.count("ListTopics"))
	assert.Equal(t, domain.LevelInfo, notifier.last().Level)

	_, err = svc.AutoDeduplicate(ctx, 0.9, false)
	require.NoError(t, err)
	assert.Equal(t, 1, api.count("ListTopics"))

	_, err = svc.AutoDeduplicate(ctx, 1.5, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTopicService_Stats(t *testing.T) {
	svc, store, _ := newTopicService(&mockBackend{})
	ctx := context.Background()
	require.NoError(t, store.ReplaceTopics(ctx, sampleTopics()))

	stats := svc.Stats(ctx)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Empty)
	require.NotEmpty(t, stats.Categories)
	assert.Equal(t, domain.CategoryCount{Name: "business", Count: 2}, stats.Categories[0])
}

func TestTopicService_Insights(t *testing.T) {
	api := &mockBackend{}
	svc, _, _ := newTopicService(api)
	ctx := context.Background()

	out, err := svc.Insights(ctx, InsightQuality)
	require.NoError(t, err)
	assert.Equal(t, 0.8, out["coherence"])

	for _, name := range InsightNames {
		_, err := svc.Insights(ctx, name)
		assert.NoError(t, err, name)
	}

	_, err = svc.Insights(ctx, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTopicService_DeleteNotFoundIsSuccess(t *testing.T) {
	api := &mockBackend{deleteTopicFn: func(string) error { return domain.ErrNotFound }}
	svc, store, _ := newTopicService(api)
	ctx := context.Background()
	require.NoError(t, store.ReplaceTopics(ctx, sampleTopics()))

	require.NoError(t, svc.Delete(ctx, "t1"))
	_, err := store.GetTopic(ctx, "t1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTopicService_SimilarDefaultLimit(t *testing.T) {
	svc, _, _ := newTopicService(&mockBackend{})
	out, err := svc.Similar(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.NotNil(t, out)
}
