package storage

import (
	"context"
	"fmt"
)

// AddRecipient registers a chat for alert fan-out. Adding a chat that is
// already registered is a silent no-op.
func (s *Store) AddRecipient(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO recipients(chat_id) VALUES(?)`, chatID)
	if err != nil {
		return fmt.Errorf("add recipient %d: %w", chatID, err)
	}
	return nil
}

// RemoveRecipient unregisters a chat. Removing an absent chat succeeds; an
// error means a storage fault, not a missing row.
func (s *Store) RemoveRecipient(ctx context.Context, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM recipients WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("remove recipient %d: %w", chatID, err)
	}
	return nil
}

// Recipients returns a point-in-time copy of all registered chat IDs.
// A nil slice means no chat is registered; callers must not treat the
// result as live state.
func (s *Store) Recipients(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM recipients`)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	return ids, nil
}
