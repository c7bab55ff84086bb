package sqlite

import (
	"context"
	"fmt"

	"github.com/gareflow/gareflow/internal/gara"
)

// AppendMessages appends to a tender's conversation log in one transaction.
func (s *SQLiteStorage) AppendMessages(ctx context.Context, tenantID, tenderID string, messages ...gara.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, msg := range messages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_messages (tenant_id, tender_id, role, text, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, tenantID, tenderID, msg.Role, msg.Text, formatTime(msg.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}
	return tx.Commit()
}

// GetConversation returns the conversation log in insertion order.
func (s *SQLiteStorage) GetConversation(ctx context.Context, tenantID, tenderID string) ([]gara.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text, created_at FROM conversation_messages
		WHERE tenant_id = ? AND tender_id = ?
		ORDER BY id ASC
	`, tenantID, tenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	messages := []gara.ChatMessage{}
	for rows.Next() {
		var msg gara.ChatMessage
		var createdAt string
		if err := rows.Scan(&msg.Role, &msg.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.CreatedAt = parseTime(createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
