package driven

import (
	"context"
	"encoding/json"
	"io"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// DocumentAPI is the backend's document surface.
type DocumentAPI interface {
	// UploadDocument sends a file as multipart form data.
	UploadDocument(ctx context.Context, filename string, content io.Reader) (*domain.Document, error)

	// ListDocuments returns every document the backend knows about.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// ProcessDocument starts processing an uploaded document.
	ProcessDocument(ctx context.Context, id string) error

	// ReprocessDocument restarts processing for a document.
	ReprocessDocument(ctx context.Context, id string) error

	// DeleteDocument removes a document.
	DeleteDocument(ctx context.Context, id string) error

	// BatchDeleteDocuments removes several documents in one call.
	BatchDeleteDocuments(ctx context.Context, ids []string) (domain.BatchResult, error)

	// DownloadDocument streams the original file. The caller closes the reader.
	DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error)

	// ListChunks returns the chunks produced for a document.
	ListChunks(ctx context.Context, id string) ([]domain.Chunk, error)

	// DocumentStatistics returns the backend's document statistics.
	DocumentStatistics(ctx context.Context) (map[string]any, error)

	// DocumentHealth reports the health of the document pipeline.
	DocumentHealth(ctx context.Context) (domain.SystemHealth, error)
}

// TopicAPI is the backend's topic surface.
type TopicAPI interface {
	ListTopics(ctx context.Context, filter domain.TopicFilter) (domain.TopicPage, error)
	TopicCategories(ctx context.Context) ([]domain.CategoryCount, error)
	TopicStatistics(ctx context.Context) (map[string]any, error)
	TopicQuality(ctx context.Context) (map[string]any, error)
	SearchTopics(ctx context.Context, query string) ([]domain.Topic, error)
	GetTopic(ctx context.Context, id string) (*domain.Topic, error)
	TopicRelationships(ctx context.Context, id string) ([]domain.TopicRelationship, error)
	TopicContent(ctx context.Context, id string) ([]domain.Chunk, error)
	UpdateTopic(ctx context.Context, id string, update domain.TopicUpdate) (*domain.Topic, error)
	DeleteTopic(ctx context.Context, id string) error
	MergeTopics(ctx context.Context, req domain.MergeRequest) (*domain.Topic, error)
	FindDuplicateTopics(ctx context.Context, threshold float64) ([]domain.DuplicateGroup, error)
	AutoDeduplicateTopics(ctx context.Context, threshold float64, dryRun bool) (domain.DeduplicateReport, error)
	CleanupEmptyTopics(ctx context.Context) (domain.CleanupReport, error)
	SimilarTopics(ctx context.Context, id string, limit int) ([]domain.SimilarTopic, error)
	BulkMergeTopics(ctx context.Context, reqs []domain.MergeRequest) (domain.BatchResult, error)
	RunTopicMaintenance(ctx context.Context, action string) (map[string]any, error)
	TopicUsage(ctx context.Context) (map[string]any, error)
	TopicPerformance(ctx context.Context) (map[string]any, error)
}

// QueryAPI is the backend's query surface.
type QueryAPI interface {
	// ProcessQuery submits a query. The body is returned undecoded because
	// its envelope varies; callers normalise it.
	ProcessQuery(ctx context.Context, req domain.QueryRequest) (json.RawMessage, error)

	// RegenerateQuery asks the backend to answer a previous query again.
	RegenerateQuery(ctx context.Context, queryID string, opts domain.QueryOptions) (json.RawMessage, error)

	QuerySuggestions(ctx context.Context, partial string) ([]string, error)
	RateQuery(ctx context.Context, queryID string, rating int) error
	QueryHistory(ctx context.Context, limit int) ([]domain.QuerySummary, error)
	PopularQueries(ctx context.Context, limit int) ([]domain.QuerySummary, error)
	SearchQueries(ctx context.Context, text string) ([]domain.QuerySummary, error)
	ExportQuery(ctx context.Context, queryID string, format domain.ExportFormat) ([]byte, error)

	// AnalyzeTopics runs a summarize, analyze or insights action over a
	// set of topic analyses and returns the generated text.
	AnalyzeTopics(ctx context.Context, action domain.AnalysisAction, query string, analyses []domain.TopicAnalysis) (string, error)
}

// AnalyticsAPI is the backend's analytics surface.
type AnalyticsAPI interface {
	SystemHealth(ctx context.Context) (domain.SystemHealth, error)
	Dashboard(ctx context.Context) (domain.DashboardSummary, error)
	Report(ctx context.Context, kind domain.ReportKind, days int) (domain.Report, error)
	ExportAnalytics(ctx context.Context, format domain.ExportFormat) ([]byte, error)
}

// Backend groups every backend surface.
type Backend interface {
	DocumentAPI
	TopicAPI
	QueryAPI
	AnalyticsAPI
}
