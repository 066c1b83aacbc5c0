package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"arrears/internal/contracts"
)

// processingRelease is how long a claimed batch stays invisible to other
// dispatchers before it is considered abandoned and reclaimed.
const processingRelease = 30 * time.Second

type MySQLOutboxRepository struct {
	db *sql.DB
}

func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{db: db}
}

// Insert stores an event row inside the caller's transaction, so the event
// commits atomically with the status change that produced it.
func (r *MySQLOutboxRepository) Insert(ctx context.Context, tx *sql.Tx, eventID, eventType string, payload []byte) error {
	query := `INSERT INTO OrderOutbox (eventId, eventType, payload) VALUES (?, ?, ?)`

	if _, err := tx.ExecContext(ctx, query, eventID, eventType, payload); err != nil {
		return fmt.Errorf("inserting outbox event: %w", err)
	}

	return nil
}

// ClaimBatch locks up to limit deliverable events and marks them processing.
// Rows stuck in processing past their release time are reclaimed.
func (r *MySQLOutboxRepository) ClaimBatch(ctx context.Context, limit int) ([]contracts.OutboxMessage, error) {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning outbox claim transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT id, eventId, eventType, payload, attempts
		FROM OrderOutbox
		WHERE (status = 'pending' AND (nextRetryAt IS NULL OR nextRetryAt <= ?))
		   OR (status = 'processing' AND nextRetryAt <= ?)
		ORDER BY id ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.QueryContext(ctx, query, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("querying outbox events: %w", err)
	}
	defer rows.Close()

	var messages []contracts.OutboxMessage
	for rows.Next() {
		var msg contracts.OutboxMessage
		if err := rows.Scan(&msg.ID, &msg.EventID, &msg.EventType, &msg.Payload, &msg.Attempts); err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outbox rows: %w", err)
	}

	if len(messages) == 0 {
		return nil, tx.Commit()
	}

	placeholders := make([]string, len(messages))
	args := make([]interface{}, 0, len(messages)+1)
	args = append(args, now.Add(processingRelease))
	for i, msg := range messages {
		placeholders[i] = "?"
		args = append(args, msg.ID)
	}

	markQuery := fmt.Sprintf(
		`UPDATE OrderOutbox SET status = 'processing', nextRetryAt = ? WHERE id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	if _, err := tx.ExecContext(ctx, markQuery, args...); err != nil {
		return nil, fmt.Errorf("marking outbox events processing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing outbox claim: %w", err)
	}

	return messages, nil
}

func (r *MySQLOutboxRepository) MarkSent(ctx context.Context, id int64) error {
	query := `UPDATE OrderOutbox SET status = 'sent', nextRetryAt = NULL WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("marking outbox event sent: %w", err)
	}

	return nil
}

// Reschedule returns a failed event to the pending pool with an incremented
// attempt count, deliverable again at nextRetryAt.
func (r *MySQLOutboxRepository) Reschedule(ctx context.Context, id int64, nextRetryAt time.Time) error {
	query := `UPDATE OrderOutbox SET status = 'pending', attempts = attempts + 1, nextRetryAt = ? WHERE id = ?`

	if _, err := r.db.ExecContext(ctx, query, nextRetryAt, id); err != nil {
		return fmt.Errorf("rescheduling outbox event: %w", err)
	}

	return nil
}
