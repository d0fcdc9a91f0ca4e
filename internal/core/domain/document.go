package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentStatus is the processing state of a document.
type DocumentStatus string

// Document lifecycle: uploading → uploaded → processing → {processed | error}.
const (
	StatusUploading  DocumentStatus = "uploading"
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusError      DocumentStatus = "error"
)

// AllStatuses lists every document status in lifecycle order.
var AllStatuses = []DocumentStatus{
	StatusUploading,
	StatusUploaded,
	StatusProcessing,
	StatusProcessed,
	StatusError,
}

// IsTerminal reports whether no further automatic transition occurs.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusProcessed || s == StatusError
}

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// Document is an uploaded file tracked by the backend.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// Filename is the original name of the uploaded file.
	Filename string `json:"filename"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ContentType is the MIME type reported by the backend.
	ContentType string `json:"content_type,omitempty"`

	// Status is the current processing state.
	Status DocumentStatus `json:"status"`

	// ErrorMessage explains an error status.
	ErrorMessage string `json:"error_message,omitempty"`

	// ChunkCount is the number of chunks produced by processing.
	ChunkCount int `json:"chunk_count"`

	// TopicCount is the number of topics the document contributes to.
	TopicCount int `json:"topic_count"`

	// UploadedAt is when the file was uploaded.
	UploadedAt time.Time `json:"uploaded_at"`

	// ProcessedAt is when processing last finished.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// UpdatedAt is when the backend last changed the record.
	UpdatedAt time.Time `json:"updated_at"`
}

// Extension returns the lower-case file extension without the dot.
func (d *Document) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Filename)), ".")
}

// Chunk is a segment of a processed document's text.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"id"`

	// DocumentID links to the parent Document.
	DocumentID string `json:"document_id"`

	// Index is the ordinal position within the document.
	Index int `json:"chunk_index"`

	// Content is the chunk text.
	Content string `json:"content"`

	// TokenCount is the backend's token estimate.
	TokenCount int `json:"token_count,omitempty"`

	// Page is the source page, when the format has pages.
	Page int `json:"page,omitempty"`
}

// DocumentStats summarises the local document collection.
// It is derived on read and never persisted.
type DocumentStats struct {
	Total       int                    `json:"total"`
	ByStatus    map[DocumentStatus]int `json:"by_status"`
	TotalSize   int64                  `json:"total_size"`
	TotalChunks int                    `json:"total_chunks"`
	TotalTopics int                    `json:"total_topics"`
	InFlight    int                    `json:"in_flight"`
}

// ProcessedPercent returns the share of documents that finished processing.
func (s DocumentStats) ProcessedPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.ByStatus[StatusProcessed]) / float64(s.Total) * 100
}

// BatchResult reports the outcome of a bulk operation.
// Succeeded + Failed always equals the number of requested items.
type BatchResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// Total returns the number of items the operation covered.
func (r BatchResult) Total() int {
	return r.Succeeded + r.Failed
}

// PollMode distinguishes first-time processing from reprocessing.
type PollMode string

const (
	PollProcessing   PollMode = "processing"
	PollReprocessing PollMode = "reprocessing"
)

// DocumentStatusEvent is published whenever a polled document changes status.
type DocumentStatusEvent struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Mode       PollMode       `json:"mode"`
	Previous   DocumentStatus `json:"previous,omitempty"`
	Status     DocumentStatus `json:"status"`
	Elapsed    time.Duration  `json:"elapsed"`
	Terminal   bool           `json:"terminal"`
	At         time.Time      `json:"at"`
}
