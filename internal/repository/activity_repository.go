package repository

import (
	"context"
	"fmt"

	"fsanano/inventory/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository is the append-only activity log.
type ActivityRepository struct {
	db *pgxpool.Pool
}

func NewActivityRepository(db *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Record(ctx context.Context, e *model.ActivityEntry) error {
	err := executor(ctx, r.db).QueryRow(ctx,
		`INSERT INTO activity_log (user_id, action, related_type, related_id, details)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.UserID, e.Action, e.RelatedType, e.RelatedID, e.Details,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// ListAll returns every entry, newest first, with the acting user's name.
func (r *ActivityRepository) ListAll(ctx context.Context) ([]model.ActivityEntry, error) {
	rows, err := executor(ctx, r.db).Query(ctx,
		`SELECT a.id, a.user_id, COALESCE(u.name, ''), a.action, a.related_type, a.related_id, a.details, a.created_at
		 FROM activity_log a
		 LEFT JOIN users u ON u.id = a.user_id
		 ORDER BY a.created_at DESC, a.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	entries := []model.ActivityEntry{}
	for rows.Next() {
		var e model.ActivityEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.Action, &e.RelatedType, &e.RelatedID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
