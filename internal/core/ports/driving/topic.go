package driving

import (
	"context"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// TopicService manages the local topic collection.
type TopicService interface {
	// List loads a page of topics and replaces the local collection.
	List(ctx context.Context, filter domain.TopicFilter) (domain.TopicPage, error)

	// Search finds topics. A blank query falls back to List.
	// A newer call cancels an in-flight one.
	Search(ctx context.Context, query string) ([]domain.Topic, error)

	Get(ctx context.Context, id string) (*domain.Topic, error)
	Categories(ctx context.Context) ([]domain.CategoryCount, error)
	Relationships(ctx context.Context, id string) ([]domain.TopicRelationship, error)
	Content(ctx context.Context, id string) ([]domain.Chunk, error)
	Similar(ctx context.Context, id string, limit int) ([]domain.SimilarTopic, error)
	Update(ctx context.Context, id string, update domain.TopicUpdate) (*domain.Topic, error)
	Delete(ctx context.Context, id string) error
	Merge(ctx context.Context, req domain.MergeRequest) (*domain.Topic, error)
	BulkMerge(ctx context.Context, reqs []domain.MergeRequest) domain.BatchResult
	Duplicates(ctx context.Context, threshold float64) ([]domain.DuplicateGroup, error)
	AutoDeduplicate(ctx context.Context, threshold float64, dryRun bool) (domain.DeduplicateReport, error)
	CleanupEmpty(ctx context.Context) (domain.CleanupReport, error)
	Maintenance(ctx context.Context, action string) (map[string]any, error)

	// Stats derives statistics from the local collection.
	Stats(ctx context.Context) domain.TopicStats

	// Insights returns a backend topic report: stats, quality, usage or performance.
	Insights(ctx context.Context, name string) (map[string]any, error)
}
