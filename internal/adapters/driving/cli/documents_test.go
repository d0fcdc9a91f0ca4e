package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
)

func TestDocumentsCmd_Use(t *testing.T) {
	assert.Equal(t, "documents", documentsCmd.Use)
	assert.Contains(t, documentsCmd.Aliases, "docs")
}

func TestDocumentsCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range documentsCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{
		"list", "upload", "process", "reprocess", "delete", "batch-delete",
		"download", "chunks", "stats", "health", "watch",
	} {
		assert.Contains(t, names, want)
	}
}

func TestDocumentsList(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("", "documents", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "doc-1")
	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "parse failed")
	assert.Contains(t, out, "2 document(s)")
}

func TestDocumentsList_JSON(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("", "documents", "list", "--json")

	require.NoError(t, err)
	var docs []domain.Document
	require.NoError(t, json.Unmarshal([]byte(out), &docs))
	assert.Len(t, docs, 2)
}

func TestDocumentsList_RefreshError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.docs.RefreshErr = errors.New("backend down")

	_, err := executeCommand("", "documents", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestDocumentsList_LocalSkipsBackend(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.docs.RefreshErr = errors.New("backend down")

	out, err := executeCommand("", "documents", "list", "--local")

	require.NoError(t, err)
	assert.Contains(t, out, "doc-1")
}

func TestDocumentsUpload(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	path := filepath.Join(dir, "paper.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7"), 0o600))

	out, err := executeCommand("", "documents", "upload", path, "--process")

	require.NoError(t, err)
	assert.Equal(t, []string{"paper.pdf"}, mocks.docs.Uploaded)
	assert.Equal(t, []string{"doc-paper.pdf"}, mocks.docs.Processed)
	assert.Contains(t, out, "paper.pdf uploaded as doc-paper.pdf")
}

func TestDocumentsUpload_ReportsFailures(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	dir := t.TempDir()
	good := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(good, []byte("text"), 0o600))
	missing := filepath.Join(dir, "missing.txt")

	out, err := executeCommand("", "documents", "upload", good, missing)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 file(s) failed")
	assert.Contains(t, out, "a.txt uploaded")
	assert.Equal(t, []string{"a.txt"}, mocks.docs.Uploaded)
}

func TestDocumentsUpload_RejectsDirectory(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("", "documents", "upload", t.TempDir())

	require.Error(t, err)
	assert.Empty(t, mocks.docs.Uploaded)
}

func TestDocumentsProcess_Wait(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.docs.ProcessFunc = func(id string, mode domain.PollMode) error {
		mocks.poller.Events <- domain.DocumentStatusEvent{DocumentID: "other", Status: domain.StatusProcessed, Terminal: true}
		mocks.poller.Events <- domain.DocumentStatusEvent{DocumentID: id, Status: domain.StatusProcessing}
		mocks.poller.Events <- domain.DocumentStatusEvent{
			DocumentID: id,
			Filename:   "report.pdf",
			Mode:       mode,
			Status:     domain.StatusProcessed,
			Terminal:   true,
			Elapsed:    6 * time.Second,
		}
		return nil
	}

	out, err := executeCommand("", "documents", "process", "doc-1", "--wait")

	require.NoError(t, err)
	assert.Contains(t, out, "Started processing of doc-1")
	assert.Contains(t, out, "report.pdf processed in 6s")
}

func TestDocumentsProcess_WaitReportsError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.docs.ProcessFunc = func(id string, _ domain.PollMode) error {
		mocks.poller.Events <- domain.DocumentStatusEvent{DocumentID: id, Status: domain.StatusError, Terminal: true}
		return nil
	}

	out, err := executeCommand("", "documents", "process", "doc-1", "--wait")

	require.Error(t, err)
	assert.Contains(t, out, "doc-1 failed")
}

func TestDocumentsProcess_StartFails(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	mocks.docs.ProcessFunc = func(string, domain.PollMode) error { return errors.New("queue full") }

	_, err := executeCommand("", "documents", "process", "doc-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue full")
}

func TestDocumentsReprocess_NeedsConfirmation(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("n\n", "documents", "reprocess", "doc-1")

	assert.ErrorIs(t, err, errAborted)
	assert.Empty(t, mocks.docs.Processed)

	_, err = executeCommand("", "documents", "reprocess", "doc-1", "--yes")

	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, mocks.docs.Processed)
}

func TestDocumentsDelete(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("y\n", "documents", "delete", "doc-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Deleted doc-1")
	assert.Equal(t, []string{"doc-1"}, mocks.docs.Deleted)
}

func TestDocumentsBatchDelete_CountsFailures(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("", "documents", "batch-delete", "doc-1", "nope", "-y")

	require.Error(t, err)
	assert.Contains(t, out, "Deleted 1 of 2 document(s)")
	assert.Contains(t, out, "Failed: nope")
}

func TestDocumentsDownload(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	target := filepath.Join(t.TempDir(), "copy.pdf")
	out, err := executeCommand("", "documents", "download", "doc-1", "-o", target)

	require.NoError(t, err)
	data, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "file bytes", string(data))
	assert.Contains(t, out, "Saved")
}

func TestDocumentsDownload_Stdout(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("", "documents", "download", "doc-1", "-o", "-")

	require.NoError(t, err)
	assert.Equal(t, "file bytes", out)
}

func TestDocumentsChunks(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("", "documents", "chunks", "doc-1")

	require.NoError(t, err)
	assert.Contains(t, out, "chunk 0")
	assert.Contains(t, out, "second chunk")
}

func TestDocumentsStats(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("", "documents", "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Documents:  2 (50% processed)")
	assert.Contains(t, out, "2.5 KiB")
}

func TestDocumentsHealth(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand("", "documents", "health")

	require.NoError(t, err)
	assert.Contains(t, out, "Status:  healthy")
	assert.Contains(t, out, "vector_store")
}

func TestDocumentsWatch_MissingDir(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand("", "documents", "watch", filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
}
