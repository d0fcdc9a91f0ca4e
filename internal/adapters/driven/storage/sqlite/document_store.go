package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.DocumentStore = (*documentStore)(nil)

// documentStore implements driven.DocumentStore. It caches the last
// backend listing so the document list can be shown offline.
type documentStore struct {
	store *Store
}

const documentColumns = `id, filename, size, content_type, status, error_message,
	chunk_count, topic_count, uploaded_at, processed_at, updated_at`

const upsertDocument = `
	INSERT INTO documents (` + documentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		filename = excluded.filename,
		size = excluded.size,
		content_type = excluded.content_type,
		status = excluded.status,
		error_message = excluded.error_message,
		chunk_count = excluded.chunk_count,
		topic_count = excluded.topic_count,
		uploaded_at = excluded.uploaded_at,
		processed_at = excluded.processed_at,
		updated_at = excluded.updated_at
`

// ReplaceDocuments swaps the whole collection in one transaction.
func (s *documentStore) ReplaceDocuments(ctx context.Context, docs []domain.Document) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertDocument)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range docs {
		if docs[i].ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, documentArgs(&docs[i])...); err != nil {
			return fmt.Errorf("save document %s: %w", docs[i].ID, err)
		}
	}

	return tx.Commit()
}

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.ErrInvalidInput
	}
	if _, err := s.store.db.ExecContext(ctx, upsertDocument, documentArgs(doc)...); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// DeleteDocument removes a document.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// ListDocuments returns documents ordered by upload time, newest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC, filename
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func documentArgs(doc *domain.Document) []any {
	var processed any
	if doc.ProcessedAt != nil {
		processed = doc.ProcessedAt.UTC()
	}
	return []any{
		doc.ID,
		doc.Filename,
		doc.Size,
		doc.ContentType,
		string(doc.Status),
		doc.ErrorMessage,
		doc.ChunkCount,
		doc.TopicCount,
		doc.UploadedAt.UTC(),
		processed,
		doc.UpdatedAt.UTC(),
	}
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc       domain.Document
		status    string
		processed sql.NullTime
	)
	if err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.Size,
		&doc.ContentType,
		&status,
		&doc.ErrorMessage,
		&doc.ChunkCount,
		&doc.TopicCount,
		&doc.UploadedAt,
		&processed,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	if processed.Valid {
		t := processed.Time
		doc.ProcessedAt = &t
	}
	return &doc, nil
}
