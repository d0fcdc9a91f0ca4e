package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.ChatStore = (*chatStore)(nil)

// chatStore implements driven.ChatStore. Append order is the seq column.
type chatStore struct {
	store *Store
}

const chatColumns = `id, role, content, reasoning, topic_analyses, sources, rating, query_id, failed, created_at`

// AppendMessage adds a message to the end of the conversation.
func (s *chatStore) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	if msg == nil || msg.ID == "" {
		return domain.ErrInvalidInput
	}

	analyses, err := json.Marshal(msg.TopicAnalyses)
	if err != nil {
		return fmt.Errorf("marshal topic analyses: %w", err)
	}
	sources, err := json.Marshal(msg.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO chat_messages (`+chatColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		msg.ID,
		string(msg.Role),
		msg.Content,
		msg.Reasoning,
		string(analyses),
		string(sources),
		msg.Rating,
		msg.QueryID,
		msg.Failed,
		created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: duplicate message id %s", domain.ErrInvalidInput, msg.ID)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *chatStore) GetMessage(ctx context.Context, id string) (*domain.ChatMessage, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+chatColumns+` FROM chat_messages WHERE id = ?
	`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// UpdateRating sets a message's rating in place.
func (s *chatStore) UpdateRating(ctx context.Context, id string, rating int) error {
	res, err := s.store.db.ExecContext(ctx, `UPDATE chat_messages SET rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListMessages returns all messages in creation order.
func (s *chatStore) ListMessages(ctx context.Context) ([]domain.ChatMessage, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chatColumns+` FROM chat_messages ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]domain.ChatMessage, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *msg)
	}
	return msgs, rows.Err()
}

// ClearMessages removes the whole conversation.
func (s *chatStore) ClearMessages(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM chat_messages`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*domain.ChatMessage, error) {
	var (
		msg      domain.ChatMessage
		role     string
		analyses string
		sources  string
	)
	if err := row.Scan(
		&msg.ID,
		&role,
		&msg.Content,
		&msg.Reasoning,
		&analyses,
		&sources,
		&msg.Rating,
		&msg.QueryID,
		&msg.Failed,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	msg.Role = domain.Role(role)

	if analyses != "" && analyses != jsonNull {
		if err := json.Unmarshal([]byte(analyses), &msg.TopicAnalyses); err != nil {
			return nil, fmt.Errorf("unmarshal topic analyses: %w", err)
		}
	}
	if sources != "" && sources != jsonNull {
		if err := json.Unmarshal([]byte(sources), &msg.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
	}
	return &msg, nil
}
