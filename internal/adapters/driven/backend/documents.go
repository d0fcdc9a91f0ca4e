package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

// UploadDocument sends a file as the multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader) (*domain.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req := request{
		method:      http.MethodPost,
		route:       "/api/documents/upload",
		path:        "/api/documents/upload",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	}

	var doc domain.Document
	if err := c.callInto(ctx, req, &doc, "document"); err != nil {
		return nil, err
	}
	if doc.Filename == "" {
		doc.Filename = filepath.Base(filename)
	}
	if doc.Status == "" {
		doc.Status = domain.StatusUploaded
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	return &doc, nil
}

// ListDocuments returns every document the backend knows about.
func (c *Client) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	req := request{method: http.MethodGet, route: "/api/documents", path: "/api/documents"}
	docs := []domain.Document{}
	if err := c.callInto(ctx, req, &docs, "documents", "items"); err != nil {
		return []domain.Document{}, err
	}
	return docs, nil
}

// ProcessDocument starts processing an uploaded document.
func (c *Client) ProcessDocument(ctx context.Context, id string) error {
	return c.documentAction(ctx, id, "process")
}

// ReprocessDocument restarts processing for a document.
func (c *Client) ReprocessDocument(ctx context.Context, id string) error {
	return c.documentAction(ctx, id, "reprocess")
}

func (c *Client) documentAction(ctx context.Context, id, action string) error {
	if strings.TrimSpace(id) == "" {
		return errEmptyID
	}
	req := request{
		method: http.MethodPost,
		route:  "/api/documents/{id}/" + action,
		path:   "/api/documents/" + escape(id) + "/" + action,
	}
	_, err := c.call(ctx, req)
	return err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errEmptyID
	}
	req := request{
		method: http.MethodDelete,
		route:  "/api/documents/{id}",
		path:   "/api/documents/" + escape(id),
	}
	_, err := c.call(ctx, req)
	return err
}

// batchDeleteResult accepts both ID lists and bare counts.
type batchDeleteResult struct {
	Deleted      []string `json:"deleted"`
	Failed       []string `json:"failed"`
	DeletedCount *int     `json:"deleted_count"`
	FailedCount  *int     `json:"failed_count"`
}

// BatchDeleteDocuments removes several documents in one call.
// IDs the backend does not confirm as deleted are reported as failed.
func (c *Client) BatchDeleteDocuments(ctx context.Context, ids []string) (domain.BatchResult, error) {
	req, err := jsonRequest(http.MethodPost, "/api/documents/batch-delete", "/api/documents/batch-delete",
		map[string][]string{"document_ids": ids})
	if err != nil {
		return domain.BatchResult{}, err
	}

	var out batchDeleteResult
	if err := c.callInto(ctx, req, &out); err != nil {
		return domain.BatchResult{}, err
	}
	return reconcileBatch(ids, out), nil
}

func reconcileBatch(ids []string, out batchDeleteResult) domain.BatchResult {
	if len(out.Deleted) > 0 || len(out.Failed) > 0 {
		deleted := make(map[string]bool, len(out.Deleted))
		for _, id := range out.Deleted {
			deleted[id] = true
		}
		var result domain.BatchResult
		for _, id := range ids {
			if deleted[id] {
				result.Succeeded++
			} else {
				result.Failed++
				result.FailedIDs = append(result.FailedIDs, id)
			}
		}
		return result
	}

	succeeded := len(ids)
	if out.DeletedCount != nil {
		succeeded = min(max(*out.DeletedCount, 0), len(ids))
	} else if out.FailedCount != nil {
		succeeded = len(ids) - min(max(*out.FailedCount, 0), len(ids))
	}
	return domain.BatchResult{Succeeded: succeeded, Failed: len(ids) - succeeded}
}

// DownloadDocument streams the original file. The caller closes the reader.
func (c *Client) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errEmptyID
	}
	req := request{
		method: http.MethodGet,
		route:  "/api/documents/{id}/download",
		path:   "/api/documents/" + escape(id) + "/download",
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ListChunks returns the chunks produced for a document.
func (c *Client) ListChunks(ctx context.Context, id string) ([]domain.Chunk, error) {
	if strings.TrimSpace(id) == "" {
		return []domain.Chunk{}, errEmptyID
	}
	req := request{
		method: http.MethodGet,
		route:  "/api/documents/{id}/chunks",
		path:   "/api/documents/" + escape(id) + "/chunks",
	}
	chunks := []domain.Chunk{}
	if err := c.callInto(ctx, req, &chunks, "chunks", "items"); err != nil {
		return []domain.Chunk{}, err
	}
	return chunks, nil
}

// DocumentStatistics returns the backend's document statistics.
func (c *Client) DocumentStatistics(ctx context.Context) (map[string]any, error) {
	return c.getMap(ctx, "/api/documents/stats", "/api/documents/stats", nil)
}

// DocumentHealth reports the health of the document pipeline.
func (c *Client) DocumentHealth(ctx context.Context) (domain.SystemHealth, error) {
	return c.health(ctx, "/api/documents/health")
}

func (c *Client) getMap(ctx context.Context, route, path string, query map[string][]string) (map[string]any, error) {
	req := request{method: http.MethodGet, route: route, path: path, query: query}
	out := map[string]any{}
	if err := c.callInto(ctx, req, &out); err != nil {
		return map[string]any{}, err
	}
	return out, nil
}

// health decodes a health payload. Components may be plain status strings
// or objects carrying a status field.
func (c *Client) health(ctx context.Context, path string) (domain.SystemHealth, error) {
	data, err := c.call(ctx, request{method: http.MethodGet, route: path, path: path})
	if err != nil {
		return domain.UnknownHealth(), err
	}

	var raw struct {
		Status     string                     `json:"status"`
		Version    string                     `json:"version"`
		Uptime     float64                    `json:"uptime_seconds"`
		Components map[string]json.RawMessage `json:"components"`
		Services   map[string]json.RawMessage `json:"services"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.UnknownHealth(), fmt.Errorf("decode health: %w", err)
	}

	h := domain.SystemHealth{
		Status:     healthState(raw.Status),
		Version:    raw.Version,
		Uptime:     raw.Uptime,
		Components: map[string]domain.HealthState{},
		CheckedAt:  time.Now(),
	}
	components := raw.Components
	if len(components) == 0 {
		components = raw.Services
	}
	for name, v := range components {
		h.Components[name] = healthState(firstString(v, "status", "state"))
	}
	return h, nil
}

func healthState(s string) domain.HealthState {
	switch strings.ToLower(s) {
	case "healthy", "ok", "up", "connected", "available":
		return domain.HealthHealthy
	case "degraded", "warning":
		return domain.HealthDegraded
	case "unhealthy", "down", "error", "disconnected", "unavailable":
		return domain.HealthUnhealthy
	}
	return domain.HealthUnknown
}
