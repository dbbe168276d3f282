package storage

import (
	"context"
	"fmt"
	"time"
)

// Outcome is the terminal status of one delivery attempt sequence.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	// OutcomeNoRecipients is recorded once per fan-out that found an empty
	// registry. The chat_id column holds "None" for these rows.
	OutcomeNoRecipients Outcome = "no_chat_ids"
)

// NoRecipientChatID is the chat_id placeholder for no_chat_ids rows.
const NoRecipientChatID = "None"

// DeliveryRecord is one immutable ledger row. Date and Time are stamped at
// append time, not at alert-trigger time.
type DeliveryRecord struct {
	Date         string
	Time         string
	ChatID       string
	SensorActive int
	Status       Outcome
}

const (
	ledgerDateFormat = "01/02/2006"
	ledgerTimeFormat = "15:04:05"
)

// AppendDelivery writes one ledger row stamped with the current date/time.
func (s *Store) AppendDelivery(ctx context.Context, chatID string, sensorActive int, status Outcome) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(date, time, chat_id, sensor_active, status) VALUES(?,?,?,?,?)`,
		now.Format(ledgerDateFormat), now.Format(ledgerTimeFormat), chatID, sensorActive, string(status))
	if err != nil {
		return fmt.Errorf("append delivery: %w", err)
	}
	return nil
}

// RecentDeliveries returns up to limit ledger rows, newest first.
func (s *Store) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, time, chat_id, sensor_active, status FROM deliveries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("load deliveries: %w", err)
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var r DeliveryRecord
		var status string
		if err := rows.Scan(&r.Date, &r.Time, &r.ChatID, &r.SensorActive, &status); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		r.Status = Outcome(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load deliveries: %w", err)
	}
	return out, nil
}
