package services

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// mockBackend implements driven.Backend. Unset funcs return zero values.
type mockBackend struct {
	mu    sync.Mutex
	calls map[string]int

	uploadFn      func(filename string, content io.Reader) (*domain.Document, error)
	listDocsFn    func() ([]domain.Document, error)
	processFn     func(id string) error
	reprocessFn   func(id string) error
	deleteDocFn   func(id string) error
	batchDeleteFn func(ids []string) (domain.BatchResult, error)
	downloadFn    func(id string) (io.ReadCloser, error)
	chunksFn      func(id string) ([]domain.Chunk, error)
	docHealthFn   func() (domain.SystemHealth, error)

	listTopicsFn  func(ctx context.Context, filter domain.TopicFilter) (domain.TopicPage, error)
	searchFn      func(ctx context.Context, query string) ([]domain.Topic, error)
	getTopicFn    func(id string) (*domain.Topic, error)
	updateTopicFn func(id string, u domain.TopicUpdate) (*domain.Topic, error)
	deleteTopicFn func(id string) error
	mergeFn       func(req domain.MergeRequest) (*domain.Topic, error)
	bulkMergeFn   func(reqs []domain.MergeRequest) (domain.BatchResult, error)
	cleanupFn     func() (domain.CleanupReport, error)
	dedupeFn      func(threshold float64, dryRun bool) (domain.DeduplicateReport, error)
	topicStatsFn  func() (map[string]any, error)

	processQueryFn func(req domain.QueryRequest) (json.RawMessage, error)
	regenerateFn   func(queryID string, opts domain.QueryOptions) (json.RawMessage, error)
	rateFn         func(queryID string, rating int) error
	suggestionsFn  func(partial string) ([]string, error)
	historyFn      func(limit int) ([]domain.QuerySummary, error)
	analyzeFn      func(action domain.AnalysisAction, query string, analyses []domain.TopicAnalysis) (string, error)

	healthFn    func() (domain.SystemHealth, error)
	dashboardFn func() (domain.DashboardSummary, error)
	reportFn    func(kind domain.ReportKind, days int) (domain.Report, error)
	exportFn    func(format domain.ExportFormat) ([]byte, error)
}

var _ driven.Backend = (*mockBackend)(nil)

func (m *mockBackend) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockBackend) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockBackend) UploadDocument(_ context.Context, filename string, content io.Reader) (*domain.Document, error) {
	m.record("UploadDocument")
	if m.uploadFn != nil {
		return m.uploadFn(filename, content)
	}
	return &domain.Document{ID: "doc-new", Filename: filename, Status: domain.StatusUploaded}, nil
}

func (m *mockBackend) ListDocuments(context.Context) ([]domain.Document, error) {
	m.record("ListDocuments")
	if m.listDocsFn != nil {
		return m.listDocsFn()
	}
	return nil, nil
}

func (m *mockBackend) ProcessDocument(_ context.Context, id string) error {
	m.record("ProcessDocument")
	if m.processFn != nil {
		return m.processFn(id)
	}
	return nil
}

func (m *mockBackend) ReprocessDocument(_ context.Context, id string) error {
	m.record("ReprocessDocument")
	if m.reprocessFn != nil {
		return m.reprocessFn(id)
	}
	return nil
}

func (m *mockBackend) DeleteDocument(_ context.Context, id string) error {
	m.record("DeleteDocument")
	if m.deleteDocFn != nil {
		return m.deleteDocFn(id)
	}
	return nil
}

func (m *mockBackend) BatchDeleteDocuments(_ context.Context, ids []string) (domain.BatchResult, error) {
	m.record("BatchDeleteDocuments")
	if m.batchDeleteFn != nil {
		return m.batchDeleteFn(ids)
	}
	return domain.BatchResult{Succeeded: len(ids)}, nil
}

func (m *mockBackend) DownloadDocument(_ context.Context, id string) (io.ReadCloser, error) {
	m.record("DownloadDocument")
	if m.downloadFn != nil {
		return m.downloadFn(id)
	}
	return io.NopCloser(strings.NewReader("")), nil
}

func (m *mockBackend) ListChunks(_ context.Context, id string) ([]domain.Chunk, error) {
	m.record("ListChunks")
	if m.chunksFn != nil {
		return m.chunksFn(id)
	}
	return nil, nil
}

func (m *mockBackend) DocumentStatistics(context.Context) (map[string]any, error) {
	m.record("DocumentStatistics")
	return map[string]any{}, nil
}

func (m *mockBackend) DocumentHealth(context.Context) (domain.SystemHealth, error) {
	m.record("DocumentHealth")
	if m.docHealthFn != nil {
		return m.docHealthFn()
	}
	return domain.SystemHealth{Status: domain.HealthHealthy}, nil
}

func (m *mockBackend) ListTopics(ctx context.Context, filter domain.TopicFilter) (domain.TopicPage, error) {
	m.record("ListTopics")
	if m.listTopicsFn != nil {
		return m.listTopicsFn(ctx, filter)
	}
	return domain.TopicPage{}, nil
}

func (m *mockBackend) TopicCategories(context.Context) ([]domain.CategoryCount, error) {
	m.record("TopicCategories")
	return nil, nil
}

func (m *mockBackend) TopicStatistics(context.Context) (map[string]any, error) {
	m.record("TopicStatistics")
	if m.topicStatsFn != nil {
		return m.topicStatsFn()
	}
	return map[string]any{}, nil
}

func (m *mockBackend) TopicQuality(context.Context) (map[string]any, error) {
	m.record("TopicQuality")
	return map[string]any{"coherence": 0.8}, nil
}

func (m *mockBackend) SearchTopics(ctx context.Context, query string) ([]domain.Topic, error) {
	m.record("SearchTopics")
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockBackend) GetTopic(_ context.Context, id string) (*domain.Topic, error) {
	m.record("GetTopic")
	if m.getTopicFn != nil {
		return m.getTopicFn(id)
	}
	return &domain.Topic{ID: id}, nil
}

func (m *mockBackend) TopicRelationships(context.Context, string) ([]domain.TopicRelationship, error) {
	m.record("TopicRelationships")
	return nil, nil
}

func (m *mockBackend) TopicContent(context.Context, string) ([]domain.Chunk, error) {
	m.record("TopicContent")
	return nil, nil
}

func (m *mockBackend) UpdateTopic(_ context.Context, id string, u domain.TopicUpdate) (*domain.Topic, error) {
	m.record("UpdateTopic")
	if m.updateTopicFn != nil {
		return m.updateTopicFn(id, u)
	}
	return nil, nil
}

func (m *mockBackend) DeleteTopic(_ context.Context, id string) error {
	m.record("DeleteTopic")
	if m.deleteTopicFn != nil {
		return m.deleteTopicFn(id)
	}
	return nil
}

func (m *mockBackend) MergeTopics(_ context.Context, req domain.MergeRequest) (*domain.Topic, error) {
	m.record("MergeTopics")
	if m.mergeFn != nil {
		return m.mergeFn(req)
	}
	return &domain.Topic{ID: req.TargetID}, nil
}

func (m *mockBackend) FindDuplicateTopics(context.Context, float64) ([]domain.DuplicateGroup, error) {
	m.record("FindDuplicateTopics")
	return nil, nil
}

func (m *mockBackend) AutoDeduplicateTopics(_ context.Context, threshold float64, dryRun bool) (domain.DeduplicateReport, error) {
	m.record("AutoDeduplicateTopics")
	if m.dedupeFn != nil {
		return m.dedupeFn(threshold, dryRun)
	}
	return domain.DeduplicateReport{DryRun: dryRun}, nil
}

func (m *mockBackend) CleanupEmptyTopics(context.Context) (domain.CleanupReport, error) {
	m.record("CleanupEmptyTopics")
	if m.cleanupFn != nil {
		return m.cleanupFn()
	}
	return domain.CleanupReport{}, nil
}

func (m *mockBackend) SimilarTopics(context.Context, string, int) ([]domain.SimilarTopic, error) {
	m.record("SimilarTopics")
	return nil, nil
}

func (m *mockBackend) BulkMergeTopics(_ context.Context, reqs []domain.MergeRequest) (domain.BatchResult, error) {
	m.record("BulkMergeTopics")
	if m.bulkMergeFn != nil {
		return m.bulkMergeFn(reqs)
	}
	return domain.BatchResult{Succeeded: len(reqs)}, nil
}

func (m *mockBackend) RunTopicMaintenance(_ context.Context, action string) (map[string]any, error) {
	m.record("RunTopicMaintenance")
	return map[string]any{"action": action}, nil
}

func (m *mockBackend) TopicUsage(context.Context) (map[string]any, error) {
	m.record("TopicUsage")
	return map[string]any{}, nil
}

func (m *mockBackend) TopicPerformance(context.Context) (map[string]any, error) {
	m.record("TopicPerformance")
	return map[string]any{}, nil
}

func (m *mockBackend) ProcessQuery(_ context.Context, req domain.QueryRequest) (json.RawMessage, error) {
	m.record("ProcessQuery")
	if m.processQueryFn != nil {
		return m.processQueryFn(req)
	}
	return json.RawMessage(`{"response":"ok"}`), nil
}

func (m *mockBackend) RegenerateQuery(_ context.Context, queryID string, opts domain.QueryOptions) (json.RawMessage, error) {
	m.record("RegenerateQuery")
	if m.regenerateFn != nil {
		return m.regenerateFn(queryID, opts)
	}
	return json.RawMessage(`{"response":"again"}`), nil
}

func (m *mockBackend) QuerySuggestions(_ context.Context, partial string) ([]string, error) {
	m.record("QuerySuggestions")
	if m.suggestionsFn != nil {
		return m.suggestionsFn(partial)
	}
	return nil, nil
}

func (m *mockBackend) RateQuery(_ context.Context, queryID string, rating int) error {
	m.record("RateQuery")
	if m.rateFn != nil {
		return m.rateFn(queryID, rating)
	}
	return nil
}

func (m *mockBackend) QueryHistory(_ context.Context, limit int) ([]domain.QuerySummary, error) {
	m.record("QueryHistory")
	if m.historyFn != nil {
		return m.historyFn(limit)
	}
	return nil, nil
}

func (m *mockBackend) PopularQueries(context.Context, int) ([]domain.QuerySummary, error) {
	m.record("PopularQueries")
	return nil, nil
}

func (m *mockBackend) SearchQueries(context.Context, string) ([]domain.QuerySummary, error) {
	m.record("SearchQueries")
	return nil, nil
}

func (m *mockBackend) ExportQuery(_ context.Context, queryID string, format domain.ExportFormat) ([]byte, error) {
	m.record("ExportQuery")
	return []byte(queryID + "." + string(format)), nil
}

func (m *mockBackend) AnalyzeTopics(
	_ context.Context,
	action domain.AnalysisAction,
	query string,
	analyses []domain.TopicAnalysis,
) (string, error) {
	m.record("AnalyzeTopics")
	if m.analyzeFn != nil {
		return m.analyzeFn(action, query, analyses)
	}
	return "", nil
}

func (m *mockBackend) SystemHealth(context.Context) (domain.SystemHealth, error) {
	m.record("SystemHealth")
	if m.healthFn != nil {
		return m.healthFn()
	}
	return domain.SystemHealth{Status: domain.HealthHealthy}, nil
}

func (m *mockBackend) Dashboard(context.Context) (domain.DashboardSummary, error) {
	m.record("Dashboard")
	if m.dashboardFn != nil {
		return m.dashboardFn()
	}
	return domain.DashboardSummary{}, nil
}

func (m *mockBackend) Report(_ context.Context, kind domain.ReportKind, days int) (domain.Report, error) {
	m.record("Report")
	if m.reportFn != nil {
		return m.reportFn(kind, days)
	}
	return domain.Report{Kind: kind, Days: days, Data: map[string]any{}}, nil
}

func (m *mockBackend) ExportAnalytics(_ context.Context, format domain.ExportFormat) ([]byte, error) {
	m.record("ExportAnalytics")
	if m.exportFn != nil {
		return m.exportFn(format)
	}
	return []byte("exported"), nil
}

// recordingNotifier keeps every notification.
type recordingNotifier struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (n *recordingNotifier) Notify(note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, note)
}

func (n *recordingNotifier) all() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Notification, len(n.items))
	copy(out, n.items)
	return out
}

func (n *recordingNotifier) last() domain.Notification {
	items := n.all()
	if len(items) == 0 {
		return domain.Notification{}
	}
	return items[len(items)-1]
}

// scriptedRefresher returns the documents produced by next on each call.
type scriptedRefresher struct {
	mu    sync.Mutex
	calls int
	next  func(call int) ([]domain.Document, error)
}

func (r *scriptedRefresher) Refresh(context.Context) ([]domain.Document, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.mu.Unlock()
	return r.next(call)
}

func (r *scriptedRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fixedTime is used where tests need stable timestamps.
var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
