package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"fsanano/inventory/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxRepository stores events written in the same transaction as the
// state change they describe; a poller ships them to the broker later.
type OutboxRepository struct {
	db *pgxpool.Pool
}

func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Insert enqueues payload as JSON and returns the generated event id.
func (r *OutboxRepository) Insert(ctx context.Context, topic, key string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	eventID := uuid.NewString()
	_, err = executor(ctx, r.db).Exec(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		eventID, topic, key, data)
	if err != nil {
		return "", fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return eventID, nil
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	rows, err := executor(ctx, r.db).Query(ctx,
		`SELECT id, event_id::text, topic, key, payload, created_at, sent_at
		 FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}
	defer rows.Close()

	var out []model.OutboxEvent
	for rows.Next() {
		var e model.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.Topic, &e.Key, &e.Payload, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := executor(ctx, r.db).Exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event %d sent: %w", id, err)
	}
	return nil
}
