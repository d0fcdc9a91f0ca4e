package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driving"
	"github.com/custodia-labs/ragdesk/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService keeps the local document collection in step with the
// backend.
type DocumentService struct {
	api      driven.DocumentAPI
	store    driven.DocumentStore
	notifier driven.Notifier
	policy   domain.UploadPolicy
	poller   driving.StatusPoller
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	api driven.DocumentAPI,
	store driven.DocumentStore,
	notifier driven.Notifier,
	policy domain.UploadPolicy,
) *DocumentService {
	return &DocumentService{
		api:      api,
		store:    store,
		notifier: notifier,
		policy:   policy,
	}
}

// AttachPoller sets the poller started by Process and Reprocess.
// The poller usually refreshes through this service, hence the setter.
func (s *DocumentService) AttachPoller(p driving.StatusPoller) {
	s.poller = p
}

// Refresh reloads the collection from the backend. It stays quiet on
// failure because the poller calls it on every tick.
func (s *DocumentService) Refresh(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.api.ListDocuments(ctx)
	if err != nil {
		return []domain.Document{}, fmt.Errorf("list documents: %w", err)
	}
	if err := s.store.ReplaceDocuments(ctx, docs); err != nil {
		return []domain.Document{}, err
	}
	return s.List(ctx)
}

// List returns the local collection.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return []domain.Document{}, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}

// Get retrieves a document from the local collection.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// Upload validates the file against the upload policy and uploads it.
// A placeholder in status uploading is visible while the request runs.
func (s *DocumentService) Upload(
	ctx context.Context,
	filename string,
	size int64,
	content io.Reader,
) (*domain.Document, error) {
	if err := s.policy.Validate(filename, size); err != nil {
		notify(s.notifier, domain.LevelError, "Upload rejected", err.Error())
		return nil, err
	}

	placeholder := &domain.Document{
		ID:         "pending-" + uuid.NewString(),
		Filename:   filename,
		Size:       size,
		Status:     domain.StatusUploading,
		UploadedAt: time.Now(),
	}
	if err := s.store.SaveDocument(ctx, placeholder); err != nil {
		return nil, err
	}

	doc, err := s.api.UploadDocument(ctx, filename, content)
	if delErr := s.store.DeleteDocument(context.WithoutCancel(ctx), placeholder.ID); delErr != nil {
		logger.Warn("documents: removing placeholder for %s failed: %v", filename, delErr)
	}
	if err != nil {
		notifyError(s.notifier, "Upload failed", err)
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	if doc.Filename == "" {
		doc.Filename = filename
	}
	if doc.Size == 0 {
		doc.Size = size
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}

	notify(s.notifier, domain.LevelSuccess, "Upload complete",
		fmt.Sprintf("%s uploaded.", doc.Filename))
	return doc, nil
}

// Process starts processing a document and polls its status.
func (s *DocumentService) Process(ctx context.Context, id string) error {
	return s.startProcessing(ctx, id, domain.PollProcessing)
}

// Reprocess restarts processing of a document and polls its status.
func (s *DocumentService) Reprocess(ctx context.Context, id string) error {
	return s.startProcessing(ctx, id, domain.PollReprocessing)
}

// startProcessing marks the document processing before the backend
// confirms, and rolls it to error if the request fails.
func (s *DocumentService) startProcessing(ctx context.Context, id string, mode domain.PollMode) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty document id", domain.ErrInvalidInput)
	}

	doc, err := s.store.GetDocument(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		// Not listed locally yet; track it from the backend's answers.
		doc = &domain.Document{ID: id}
	} else if err != nil {
		return err
	}

	doc.Status = domain.StatusProcessing
	doc.ErrorMessage = ""
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return err
	}

	call := s.api.ProcessDocument
	title := "Processing failed"
	if mode == domain.PollReprocessing {
		call = s.api.ReprocessDocument
		title = "Reprocessing failed"
	}

	if err := call(ctx, id); err != nil {
		doc.Status = domain.StatusError
		doc.ErrorMessage = UserMessage(err)
		if saveErr := s.store.SaveDocument(ctx, doc); saveErr != nil {
			logger.Warn("documents: rollback of %s failed: %v", id, saveErr)
		}
		notifyError(s.notifier, title, err)
		return fmt.Errorf("%s %s: %w", mode, id, err)
	}

	if s.poller != nil {
		s.poller.Start(ctx, id, mode)
	}
	return nil
}

// Delete removes a document. A document the backend no longer knows is
// treated as deleted.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty document id", domain.ErrInvalidInput)
	}

	err := s.api.DeleteDocument(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		notifyError(s.notifier, "Delete failed", err)
		return fmt.Errorf("delete %s: %w", id, err)
	}

	if s.poller != nil {
		s.poller.Stop(id)
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	notify(s.notifier, domain.LevelSuccess, "Document deleted", id)
	return nil
}

// BatchDelete removes several documents. Succeeded plus Failed always
// equals len(ids).
func (s *DocumentService) BatchDelete(ctx context.Context, ids []string) domain.BatchResult {
	if len(ids) == 0 {
		return domain.BatchResult{}
	}

	result, err := s.api.BatchDeleteDocuments(ctx, ids)
	if err != nil {
		notifyError(s.notifier, "Batch delete failed", err)
		return domain.BatchResult{Failed: len(ids), FailedIDs: append([]string(nil), ids...)}
	}
	result = balanceBatch(result, ids)

	failed := make(map[string]bool, len(result.FailedIDs))
	for _, id := range result.FailedIDs {
		failed[id] = true
	}
	// Without per-ID detail the local collection is only pruned when
	// everything succeeded.
	if result.Failed == 0 || len(result.FailedIDs) == result.Failed {
		for _, id := range ids {
			if failed[id] {
				continue
			}
			if s.poller != nil {
				s.poller.Stop(id)
			}
			if err := s.store.DeleteDocument(ctx, id); err != nil {
				logger.Warn("documents: removing %s from the local cache failed: %v", id, err)
			}
		}
	}

	level := domain.LevelSuccess
	if result.Failed > 0 {
		level = domain.LevelWarning
	}
	notify(s.notifier, level, "Batch delete",
		fmt.Sprintf("%d deleted, %d failed.", result.Succeeded, result.Failed))
	return result
}

// Download writes the original file to w.
func (s *DocumentService) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	body, err := s.api.DownloadDocument(ctx, id)
	if err != nil {
		notifyError(s.notifier, "Download failed", err)
		return 0, fmt.Errorf("download %s: %w", id, err)
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", id, err)
	}
	return n, nil
}

// Chunks returns the chunks produced for a document.
func (s *DocumentService) Chunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	chunks, err := s.api.ListChunks(ctx, id)
	if err != nil {
		notifyError(s.notifier, "Could not load chunks", err)
		return []domain.Chunk{}, err
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	return chunks, nil
}

// Stats derives statistics from the local collection.
func (s *DocumentService) Stats(ctx context.Context) domain.DocumentStats {
	stats := domain.DocumentStats{ByStatus: make(map[domain.DocumentStatus]int, len(domain.AllStatuses))}
	for _, st := range domain.AllStatuses {
		stats.ByStatus[st] = 0
	}

	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		logger.Warn("documents: stats: %v", err)
		return stats
	}

	for i := range docs {
		d := &docs[i]
		stats.Total++
		stats.ByStatus[d.Status]++
		stats.TotalSize += d.Size
		stats.TotalChunks += d.ChunkCount
		stats.TotalTopics += d.TopicCount
	}
	if s.poller != nil {
		stats.InFlight = len(s.poller.InFlight(domain.PollProcessing)) +
			len(s.poller.InFlight(domain.PollReprocessing))
	}
	return stats
}

// Health reports the backend document pipeline health, or an unknown
// state when it cannot be reached.
func (s *DocumentService) Health(ctx context.Context) domain.SystemHealth {
	health, err := s.api.DocumentHealth(ctx)
	if err != nil {
		logger.Warn("documents: health: %v", err)
		return domain.UnknownHealth()
	}
	return health
}

// balanceBatch makes the counts cover exactly ids.
func balanceBatch(r domain.BatchResult, ids []string) domain.BatchResult {
	n := len(ids)
	if r.Failed < 0 {
		r.Failed = 0
	}
	if r.Failed > n {
		r.Failed = n
	}
	r.Succeeded = n - r.Failed
	return r
}
