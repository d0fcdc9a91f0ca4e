package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure TopicService implements the interface.
var _ driving.TopicService = (*TopicService)(nil)

// DefaultSimilarLimit is used when Similar is called without a limit.
const DefaultSimilarLimit = 5

// Topic report names accepted by Insights.
const (
	InsightStats       = "stats"
	InsightQuality     = "quality"
	InsightUsage       = "usage"
	InsightPerformance = "performance"
)

// InsightNames lists the reports Insights serves.
var InsightNames = []string{InsightStats, InsightQuality, InsightUsage, InsightPerformance}

// TopicService manages the local topic collection.
//
// List and Search replace the collection. A newer List or Search cancels
// the one in flight, and a superseded call never writes its result.
type TopicService struct {
	api      driven.TopicAPI
	store    driven.TopicStore
	notifier driven.Notifier

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewTopicService creates a new topic service.
func NewTopicService(api driven.TopicAPI, store driven.TopicStore, notifier driven.Notifier) *TopicService {
	return &TopicService{api: api, store: store, notifier: notifier}
}

// List loads a page of topics and replaces the local collection.
func (s *TopicService) List(ctx context.Context, filter domain.TopicFilter) (domain.TopicPage, error) {
	reqCtx, seq, done := s.begin(ctx)
	defer done()

	page, err := s.api.ListTopics(reqCtx, filter)
	if err != nil {
		if s.superseded(seq) {
			return domain.TopicPage{Topics: []domain.Topic{}}, ErrSuperseded
		}
		notifyError(s.notifier, "Could not load topics", err)
		return domain.TopicPage{Topics: []domain.Topic{}}, fmt.Errorf("list topics: %w", err)
	}
	if page.Topics == nil {
		page.Topics = []domain.Topic{}
	}

	if err := s.commit(ctx, seq, page.Topics); err != nil {
		return domain.TopicPage{Topics: []domain.Topic{}}, err
	}
	return page, nil
}

// Search finds topics matching query. A blank query lists all topics
// instead of sending an empty search.
func (s *TopicService) Search(ctx context.Context, query string) ([]domain.Topic, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		page, err := s.List(ctx, domain.TopicFilter{})
		return page.Topics, err
	}

	reqCtx, seq, done := s.begin(ctx)
	defer done()

	topics, err := s.api.SearchTopics(reqCtx, query)
	if err != nil {
		if s.superseded(seq) {
			return []domain.Topic{}, ErrSuperseded
		}
		notifyError(s.notifier, "Search failed", err)
		return []domain.Topic{}, fmt.Errorf("search topics: %w", err)
	}
	if topics == nil {
		topics = []domain.Topic{}
	}

	if err := s.commit(ctx, seq, topics); err != nil {
		return []domain.Topic{}, err
	}
	return topics, nil
}

// begin registers a new listing request and cancels the previous one.
func (s *TopicService) begin(ctx context.Context) (context.Context, uint64, func()) {
	reqCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	return reqCtx, seq, cancel
}

func (s *TopicService) superseded(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq != s.seq
}

// commit stores topics unless a newer request started.
func (s *TopicService) commit(ctx context.Context, seq uint64, topics []domain.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq {
		logger.Debug("topics: dropped superseded result #%d", seq)
		return ErrSuperseded
	}
	return s.store.ReplaceTopics(ctx, topics)
}

// Get fetches a topic and caches it locally.
func (s *TopicService) Get(ctx context.Context, id string) (*domain.Topic, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty topic id", domain.ErrInvalidInput)
	}
	topic, err := s.api.GetTopic(ctx, id)
	if err != nil {
		notifyError(s.notifier, "Could not load topic", err)
		return nil, err
	}
	if err := s.store.SaveTopic(ctx, topic); err != nil {
		logger.Warn("topics: cache %s: %v", id, err)
	}
	return topic, nil
}

// Categories returns topic categories with counts.
func (s *TopicService) Categories(ctx context.Context) ([]domain.CategoryCount, error) {
	cats, err := s.api.TopicCategories(ctx)
	if err != nil {
		notifyError(s.notifier, "Could not load categories", err)
		return []domain.CategoryCount{}, err
	}
	if cats == nil {
		cats = []domain.CategoryCount{}
	}
	return cats, nil
}

// Relationships returns the topics linked to id.
func (s *TopicService) Relationships(ctx context.Context, id string) ([]domain.TopicRelationship, error) {
	rels, err := s.api.TopicRelationships(ctx, id)
	if err != nil {
		notifyError(s.notifier, "Could not load relationships", err)
		return []domain.TopicRelationship{}, err
	}
	if rels == nil {
		rels = []domain.TopicRelationship{}
	}
	return rels, nil
}

// Content returns the chunks assigned to a topic.
func (s *TopicService) Content(ctx context.Context, id string) ([]domain.Chunk, error) {
	chunks, err := s.api.TopicContent(ctx, id)
	if err != nil {
		notifyError(s.notifier, "Could not load topic content", err)
		return []domain.Chunk{}, err
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	return chunks, nil
}

// Similar returns topics similar to id.
func (s *TopicService) Similar(ctx context.Context, id string, limit int) ([]domain.SimilarTopic, error) {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	similar, err := s.api.SimilarTopics(ctx, id, limit)
	if err != nil {
		notifyError(s.notifier, "Could not load similar topics", err)
		return []domain.SimilarTopic{}, err
	}
	if similar == nil {
		similar = []domain.SimilarTopic{}
	}
	return similar, nil
}

// Update edits a topic. When the backend answers without the topic, the
// change is applied to the cached copy.
func (s *TopicService) Update(ctx context.Context, id string, update domain.TopicUpdate) (*domain.Topic, error) {
	if update.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: topic name cannot be empty", domain.ErrInvalidInput)
	}

	topic, err := s.api.UpdateTopic(ctx, id, update)
	if err != nil {
		notifyError(s.notifier, "Update failed", err)
		return nil, fmt.Errorf("update topic %s: %w", id, err)
	}

	if topic == nil {
		cached, getErr := s.store.GetTopic(ctx, id)
		if getErr != nil {
			cached = &domain.Topic{ID: id}
		}
		update.Apply(cached)
		topic = cached
	}
	if err := s.store.SaveTopic(ctx, topic); err != nil {
		return nil, err
	}
	notify(s.notifier, domain.LevelSuccess, "Topic updated", topic.Name)
	return topic, nil
}

// Delete removes a topic.
func (s *TopicService) Delete(ctx context.Context, id string) error {
	err := s.api.DeleteTopic(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		notifyError(s.notifier, "Delete failed", err)
		return fmt.Errorf("delete topic %s: %w", id, err)
	}
	if err := s.store.DeleteTopic(ctx, id); err != nil {
		return err
	}
	notify(s.notifier, domain.LevelSuccess, "Topic deleted", id)
	return nil
}

// Merge folds the source topics into the target and drops the sources
// from the local collection.
func (s *TopicService) Merge(ctx context.Context, req domain.MergeRequest) (*domain.Topic, error) {
	if err := validateMerge(req); err != nil {
		return nil, err
	}

	merged, err := s.api.MergeTopics(ctx, req)
	if err != nil {
		notifyError(s.notifier, "Merge failed", err)
		return nil, fmt.Errorf("merge topics: %w", err)
	}
	if merged == nil {
		merged = &domain.Topic{ID: req.TargetID, Name: req.NewName}
	}

	s.dropMerged(ctx, req, merged.ID)
	if err := s.store.SaveTopic(ctx, merged); err != nil {
		return nil, err
	}
	notify(s.notifier, domain.LevelSuccess, "Topics merged",
		fmt.Sprintf("%d topics merged into %s.", len(req.SourceIDs), displayName(merged)))
	return merged, nil
}

// BulkMerge runs several merges. Succeeded plus Failed equals len(reqs).
func (s *TopicService) BulkMerge(ctx context.Context, reqs []domain.MergeRequest) domain.BatchResult {
	if len(reqs) == 0 {
		return domain.BatchResult{}
	}
	for _, req := range reqs {
		if err := validateMerge(req); err != nil {
			notifyError(s.notifier, "Bulk merge rejected", err)
			return domain.BatchResult{Failed: len(reqs)}
		}
	}

	result, err := s.api.BulkMergeTopics(ctx, reqs)
	if err != nil {
		notifyError(s.notifier, "Bulk merge failed", err)
		return domain.BatchResult{Failed: len(reqs)}
	}
	if result.Failed < 0 {
		result.Failed = 0
	}
	if result.Failed > len(reqs) {
		result.Failed = len(reqs)
	}
	result.Succeeded = len(reqs) - result.Failed

	if result.Failed == 0 {
		for _, req := range reqs {
			s.dropMerged(ctx, req, req.TargetID)
		}
	}

	level := domain.LevelSuccess
	if result.Failed > 0 {
		level = domain.LevelWarning
	}
	notify(s.notifier, level, "Bulk merge",
		fmt.Sprintf("%d merged, %d failed.", result.Succeeded, result.Failed))
	return result
}

func (s *TopicService) dropMerged(ctx context.Context, req domain.MergeRequest, keep string) {
	for _, id := range req.SourceIDs {
		if id == keep || id == req.TargetID {
			continue
		}
		_ = s.store.DeleteTopic(ctx, id)
	}
}

// Duplicates returns groups of topics the backend considers duplicates.
func (s *TopicService) Duplicates(ctx context.Context, threshold float64) ([]domain.DuplicateGroup, error) {
	if threshold < 0 || threshold > 1 {
		return []domain.DuplicateGroup{}, fmt.Errorf("%w: threshold must be between 0 and 1", domain.ErrInvalidInput)
	}
	groups, err := s.api.FindDuplicateTopics(ctx, threshold)
	if err != nil {
		notifyError(s.notifier, "Duplicate search failed", err)
		return []domain.DuplicateGroup{}, err
	}
	if groups == nil {
		groups = []domain.DuplicateGroup{}
	}
	return groups, nil
}

// AutoDeduplicate merges duplicate topics, or only reports them when
// dryRun is set. A real run invalidates the local collection.
func (s *TopicService) AutoDeduplicate(
	ctx context.Context,
	threshold float64,
	dryRun bool,
) (domain.DeduplicateReport, error) {
	if threshold < 0 || threshold > 1 {
		return domain.DeduplicateReport{DryRun: dryRun},
			fmt.Errorf("%w: threshold must be between 0 and 1", domain.ErrInvalidInput)
	}
	report, err := s.api.AutoDeduplicateTopics(ctx, threshold, dryRun)
	if err != nil {
		notifyError(s.notifier, "Deduplication failed", err)
		return domain.DeduplicateReport{DryRun: dryRun}, err
	}

	if dryRun {
		notify(s.notifier, domain.LevelInfo, "Deduplication preview",
			fmt.Sprintf("%d duplicate groups found.", report.GroupsFound))
		return report, nil
	}
	if report.TopicsMerged > 0 {
		if _, err := s.List(ctx, domain.TopicFilter{}); err != nil {
			logger.Warn("topics: reload after deduplicate: %v", err)
		}
	}
	notify(s.notifier, domain.LevelSuccess, "Deduplication complete",
		fmt.Sprintf("%d topics merged.", report.TopicsMerged))
	return report, nil
}

// CleanupEmpty removes topics with no content.
func (s *TopicService) CleanupEmpty(ctx context.Context) (domain.CleanupReport, error) {
	report, err := s.api.CleanupEmptyTopics(ctx)
	if err != nil {
		notifyError(s.notifier, "Cleanup failed", err)
		return domain.CleanupReport{}, err
	}
	for _, id := range report.RemovedIDs {
		_ = s.store.DeleteTopic(ctx, id)
	}
	notify(s.notifier, domain.LevelSuccess, "Cleanup complete",
		fmt.Sprintf("%d empty topics removed.", report.Removed))
	return report, nil
}

// Maintenance runs a named backend maintenance action.
func (s *TopicService) Maintenance(ctx context.Context, action string) (map[string]any, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return map[string]any{}, fmt.Errorf("%w: empty maintenance action", domain.ErrInvalidInput)
	}
	out, err := s.api.RunTopicMaintenance(ctx, action)
	if err != nil {
		notifyError(s.notifier, "Maintenance failed", err)
		return map[string]any{}, err
	}
	if out == nil {
		out = map[string]any{}
	}
	notify(s.notifier, domain.LevelSuccess, "Maintenance complete", action)
	return out, nil
}

// Stats derives statistics from the local collection.
func (s *TopicService) Stats(ctx context.Context) domain.TopicStats {
	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		logger.Warn("topics: stats: %v", err)
		topics = nil
	}
	return domain.ComputeTopicStats(topics)
}

// Insights returns one of the backend's topic reports.
func (s *TopicService) Insights(ctx context.Context, name string) (map[string]any, error) {
	var fetch func(context.Context) (map[string]any, error)
	switch name {
	case InsightStats:
		fetch = s.api.TopicStatistics
	case InsightQuality:
		fetch = s.api.TopicQuality
	case InsightUsage:
		fetch = s.api.TopicUsage
	case InsightPerformance:
		fetch = s.api.TopicPerformance
	default:
		return map[string]any{}, fmt.Errorf("%w: unknown report %q, expected one of %s",
			domain.ErrInvalidInput, name, strings.Join(InsightNames, ", "))
	}

	out, err := fetch(ctx)
	if err != nil {
		notifyError(s.notifier, "Could not load topic "+name, err)
		return map[string]any{}, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func validateMerge(req domain.MergeRequest) error {
	if strings.TrimSpace(req.TargetID) == "" {
		return fmt.Errorf("%w: merge needs a target topic", domain.ErrInvalidInput)
	}
	sources := 0
	for _, id := range req.SourceIDs {
		if id != "" && id != req.TargetID {
			sources++
		}
	}
	if sources == 0 {
		return fmt.Errorf("%w: merge needs at least one source topic besides the target", domain.ErrInvalidInput)
	}
	return nil
}

func displayName(t *domain.Topic) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}
