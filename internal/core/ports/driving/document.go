package driving

import (
	"context"
	"io"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// DocumentService manages the local document collection.
type DocumentService interface {
	// Refresh reloads the collection from the backend.
	Refresh(ctx context.Context) ([]domain.Document, error)

	// List returns the local collection without contacting the backend.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document from the local collection.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// Upload validates and uploads a file.
	Upload(ctx context.Context, filename string, size int64, content io.Reader) (*domain.Document, error)

	// Process starts processing and polls until a terminal status.
	Process(ctx context.Context, id string) error

	// Reprocess restarts processing and polls until a terminal status.
	Reprocess(ctx context.Context, id string) error

	// Delete removes a document.
	Delete(ctx context.Context, id string) error

	// BatchDelete removes several documents and reports per-item outcome.
	BatchDelete(ctx context.Context, ids []string) domain.BatchResult

	// Download writes the original file to w.
	Download(ctx context.Context, id string, w io.Writer) (int64, error)

	// Chunks returns the chunks produced for a document.
	Chunks(ctx context.Context, id string) ([]domain.Chunk, error)

	// Stats derives statistics from the local collection.
	Stats(ctx context.Context) domain.DocumentStats

	// Health reports the backend document pipeline health.
	Health(ctx context.Context) domain.SystemHealth
}

// StatusPoller watches documents until they reach a terminal status.
type StatusPoller interface {
	// Start begins polling id, replacing any poll already running for it.
	Start(ctx context.Context, id string, mode domain.PollMode)

	// Stop cancels the poll for id, if any.
	Stop(id string)

	// StopAll cancels every poll.
	StopAll()

	// InFlight returns the IDs being polled in the given mode.
	InFlight(mode domain.PollMode) []string

	// Elapsed returns how long id has been polled.
	Elapsed(id string) (time.Duration, bool)

	// Subscribe returns a channel of status events and a cancel function.
	Subscribe() (<-chan domain.DocumentStatusEvent, func())
}
