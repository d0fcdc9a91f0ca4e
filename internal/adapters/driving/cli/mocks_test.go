package cli

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
)

// MockDocumentService records calls and returns canned documents.
type MockDocumentService struct {
	driving.DocumentService

	Docs        []domain.Document
	RefreshErr  error
	UploadFunc  func(filename string, size int64, content io.Reader) (*domain.Document, error)
	ProcessFunc func(id string, mode domain.PollMode) error
	DeleteErr   error
	Payload     string

	mu        sync.Mutex
	Uploaded  []string
	Processed []string
	Deleted   []string
}

func (m *MockDocumentService) Refresh(_ context.Context) ([]domain.Document, error) {
	if m.RefreshErr != nil {
		return []domain.Document{}, m.RefreshErr
	}
	return m.Docs, nil
}

func (m *MockDocumentService) List(_ context.Context) ([]domain.Document, error) {
	return m.Docs, nil
}

func (m *MockDocumentService) Get(_ context.Context, id string) (*domain.Document, error) {
	for i := range m.Docs {
		if m.Docs[i].ID == id {
			d := m.Docs[i]
			return &d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockDocumentService) Upload(_ context.Context, filename string, size int64, content io.Reader) (*domain.Document, error) {
	m.mu.Lock()
	m.Uploaded = append(m.Uploaded, filename)
	m.mu.Unlock()
	if m.UploadFunc != nil {
		return m.UploadFunc(filename, size, content)
	}
	return &domain.Document{ID: "doc-" + filename, Filename: filename, Size: size, Status: domain.StatusUploaded}, nil
}

func (m *MockDocumentService) Process(_ context.Context, id string) error {
	return m.start(id, domain.PollProcessing)
}

func (m *MockDocumentService) Reprocess(_ context.Context, id string) error {
	return m.start(id, domain.PollReprocessing)
}

func (m *MockDocumentService) start(id string, mode domain.PollMode) error {
	m.mu.Lock()
	m.Processed = append(m.Processed, id)
	m.mu.Unlock()
	if m.ProcessFunc != nil {
		return m.ProcessFunc(id, mode)
	}
	return nil
}

func (m *MockDocumentService) Delete(_ context.Context, id string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockDocumentService) BatchDelete(_ context.Context, ids []string) domain.BatchResult {
	res := domain.BatchResult{}
	for _, id := range ids {
		if _, err := m.Get(context.Background(), id); err != nil {
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, id)
			continue
		}
		res.Succeeded++
		m.Deleted = append(m.Deleted, id)
	}
	return res
}

func (m *MockDocumentService) Download(_ context.Context, id string, w io.Writer) (int64, error) {
	if _, err := m.Get(context.Background(), id); err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, m.Payload)
	return int64(n), err
}

func (m *MockDocumentService) Chunks(_ context.Context, id string) ([]domain.Chunk, error) {
	return []domain.Chunk{
		{ID: "c1", DocumentID: id, Index: 0, Content: "first chunk"},
		{ID: "c2", DocumentID: id, Index: 1, Content: "second chunk"},
	}, nil
}

func (m *MockDocumentService) Stats(_ context.Context) domain.DocumentStats {
	stats := domain.DocumentStats{Total: len(m.Docs), ByStatus: map[domain.DocumentStatus]int{}}
	for _, d := range m.Docs {
		stats.ByStatus[d.Status]++
		stats.TotalSize += d.Size
		stats.TotalChunks += d.ChunkCount
	}
	return stats
}

func (m *MockDocumentService) Health(_ context.Context) domain.SystemHealth {
	return domain.SystemHealth{
		Status:     domain.HealthHealthy,
		Version:    "1.2.0",
		Components: map[string]domain.HealthState{"vector_store": domain.HealthHealthy},
	}
}

// MockPoller hands out one subscription fed by Events.
type MockPoller struct {
	driving.StatusPoller

	Events   chan domain.DocumentStatusEvent
	inFlight map[domain.PollMode][]string
}

func (m *MockPoller) Subscribe() (<-chan domain.DocumentStatusEvent, func()) {
	return m.Events, func() {}
}

func (m *MockPoller) InFlight(mode domain.PollMode) []string {
	return m.inFlight[mode]
}

// MockChatService returns fixed answers.
type MockChatService struct {
	driving.ChatService

	SendFunc func(query string, opts domain.QueryOptions) (*domain.ChatMessage, error)
	Msgs     []domain.ChatMessage
	Ratings  map[string]int
	Cleared  bool
	Exported domain.ExportFormat
}

func (m *MockChatService) Send(_ context.Context, query string, opts domain.QueryOptions) (*domain.ChatMessage, error) {
	if m.SendFunc != nil {
		return m.SendFunc(query, opts)
	}
	return &domain.ChatMessage{ID: "m-1", Role: domain.RoleAssistant, Content: "Answer to " + query}, nil
}

func (m *MockChatService) Regenerate(_ context.Context, id string) (*domain.ChatMessage, error) {
	return &domain.ChatMessage{ID: id + "-2", Role: domain.RoleAssistant, Content: "Regenerated"}, nil
}

func (m *MockChatService) Rate(_ context.Context, id string, rating int) error {
	if m.Ratings == nil {
		m.Ratings = map[string]int{}
	}
	m.Ratings[id] = rating
	return nil
}

func (m *MockChatService) Messages(_ context.Context) ([]domain.ChatMessage, error) {
	return m.Msgs, nil
}

func (m *MockChatService) Clear(_ context.Context) error {
	m.Cleared = true
	return nil
}

func (m *MockChatService) Analyze(_ context.Context, id string, action domain.AnalysisAction) (string, error) {
	return string(action) + " of " + id, nil
}

func (m *MockChatService) Export(_ context.Context, format domain.ExportFormat) ([]byte, error) {
	m.Exported = format
	return []byte("# Conversation\n"), nil
}

func (m *MockChatService) ExportAnalyses(_ context.Context, id string, format domain.ExportFormat) ([]byte, error) {
	m.Exported = format
	return []byte("analyses of " + id), nil
}

func (m *MockChatService) Suggestions(_ context.Context, partial string) []string {
	return []string{partial + " pricing", partial + " roadmap"}
}

func (m *MockChatService) History(_ context.Context, limit int) []domain.QuerySummary {
	return []domain.QuerySummary{{ID: "q1", Query: "what is ragdesk"}}[:min(limit, 1)]
}

func (m *MockChatService) Popular(_ context.Context, _ int) []domain.QuerySummary {
	return []domain.QuerySummary{{ID: "q2", Query: "pricing", Count: 7}}
}

func (m *MockChatService) SearchHistory(_ context.Context, _ string) []domain.QuerySummary {
	return []domain.QuerySummary{}
}

// MockTopicService serves a small fixed topic set.
type MockTopicService struct {
	driving.TopicService

	Topics     []domain.Topic
	LastFilter domain.TopicFilter
	LastUpdate domain.TopicUpdate
	LastMerge  domain.MergeRequest
	BulkMerged []domain.MergeRequest
	DryRun     *bool
}

func (m *MockTopicService) List(_ context.Context, f domain.TopicFilter) (domain.TopicPage, error) {
	m.LastFilter = f
	return domain.TopicPage{Topics: m.Topics, Page: 1, Limit: f.Limit, Total: len(m.Topics), TotalPages: 1}, nil
}

func (m *MockTopicService) Search(_ context.Context, _ string) ([]domain.Topic, error) {
	return m.Topics, nil
}

func (m *MockTopicService) Get(_ context.Context, id string) (*domain.Topic, error) {
	for i := range m.Topics {
		if m.Topics[i].ID == id {
			t := m.Topics[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockTopicService) Relationships(_ context.Context, _ string) ([]domain.TopicRelationship, error) {
	return []domain.TopicRelationship{{TopicID: "t2", TopicName: "Neural nets", Type: "related", Strength: 0.8}}, nil
}

func (m *MockTopicService) Categories(_ context.Context) ([]domain.CategoryCount, error) {
	return []domain.CategoryCount{{Name: "science", Count: 2}}, nil
}

func (m *MockTopicService) Update(_ context.Context, id string, u domain.TopicUpdate) (*domain.Topic, error) {
	m.LastUpdate = u
	t, err := m.Get(context.Background(), id)
	if err != nil {
		return nil, err
	}
	u.Apply(t)
	return t, nil
}

func (m *MockTopicService) Merge(_ context.Context, req domain.MergeRequest) (*domain.Topic, error) {
	m.LastMerge = req
	return &domain.Topic{ID: req.TargetID, Name: req.NewName}, nil
}

func (m *MockTopicService) BulkMerge(_ context.Context, reqs []domain.MergeRequest) domain.BatchResult {
	m.BulkMerged = reqs
	return domain.BatchResult{Succeeded: len(reqs)}
}

func (m *MockTopicService) AutoDeduplicate(_ context.Context, _ float64, dryRun bool) (domain.DeduplicateReport, error) {
	m.DryRun = &dryRun
	r := domain.DeduplicateReport{DryRun: dryRun, GroupsFound: 1}
	if !dryRun {
		r.TopicsMerged = 2
	}
	return r, nil
}

func (m *MockTopicService) CleanupEmpty(_ context.Context) (domain.CleanupReport, error) {
	return domain.CleanupReport{Removed: 3}, nil
}

func (m *MockTopicService) Stats(_ context.Context) domain.TopicStats {
	return domain.ComputeTopicStats(m.Topics)
}

func (m *MockTopicService) Insights(_ context.Context, name string) (map[string]any, error) {
	return map[string]any{"report": name, "total": float64(12)}, nil
}

// MockAnalyticsService returns a healthy backend.
type MockAnalyticsService struct {
	driving.AnalyticsService

	LastKind domain.ReportKind
	LastDays int
}

func (m *MockAnalyticsService) Health(_ context.Context) (domain.SystemHealth, error) {
	return domain.SystemHealth{Status: domain.HealthHealthy, Version: "1.2.0"}, nil
}

func (m *MockAnalyticsService) Dashboard(_ context.Context) (domain.DashboardSummary, error) {
	return domain.DashboardSummary{TotalDocuments: 4, ProcessedDocuments: 2, TotalQueries: 1234, StorageBytes: 2048}, nil
}

func (m *MockAnalyticsService) Report(_ context.Context, kind domain.ReportKind, days int) (domain.Report, error) {
	m.LastKind, m.LastDays = kind, days
	return domain.Report{Kind: kind, Days: days, Data: map[string]any{"total_queries": float64(42)}}, nil
}

func (m *MockAnalyticsService) Export(_ context.Context, format domain.ExportFormat) ([]byte, error) {
	return []byte("format=" + string(format)), nil
}

// MockSettingsService stores values in a map.
type MockSettingsService struct {
	values map[string]string
}

func (m *MockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	if v, ok := m.values[domain.KeyAPIURL]; ok {
		s.API.URL = v
	}
	if v, ok := m.values[domain.KeyAPIToken]; ok {
		s.API.Token = v
	}
	return &s, nil
}

func (m *MockSettingsService) Value(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *MockSettingsService) Set(key, value string) error {
	if !domain.IsUserSettable(key) {
		return domain.ErrInvalidInput
	}
	m.values[key] = value
	return nil
}

func (m *MockSettingsService) Unset(key string) error {
	delete(m.values, key)
	return nil
}

func (m *MockSettingsService) Keys() []string {
	return domain.UserSettableKeys
}

func (m *MockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// MockSessionService accepts one password.
type MockSessionService struct {
	Password string
	Dev      bool
	session  *domain.Session
}

func (m *MockSessionService) Login(password string) (*domain.Session, error) {
	if password != m.Password {
		return nil, domain.ErrInvalidInput
	}
	now := time.Now()
	m.session = &domain.Session{Subject: "console", IssuedAt: now, ExpiresAt: now.Add(domain.SessionTTL)}
	return m.session, nil
}

func (m *MockSessionService) Logout() error {
	m.session = nil
	return nil
}

func (m *MockSessionService) Current() (*domain.Session, error) {
	if m.session == nil {
		return nil, domain.ErrSessionExpired
	}
	return m.session, nil
}

func (m *MockSessionService) UsingDevPassword() bool { return m.Dev }

func (m *MockSessionService) Invalidate() error { return m.Logout() }

func (m *MockSessionService) Verify(string) (*domain.Session, error) { return m.Current() }
