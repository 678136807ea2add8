package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/loomdrop/backend/internal/db"
	"github.com/loomdrop/backend/internal/models"
)

const maxRecentEvents = 500

// PostgresEventLog persists resolution outcomes to PostgreSQL.
type PostgresEventLog struct {
	pool db.Pool
}

// NewPostgresEventLog constructs an event log backed by PostgreSQL.
func NewPostgresEventLog(pool db.Pool) *PostgresEventLog {
	return &PostgresEventLog{pool: pool}
}

// Record inserts a single resolution event.
func (r *PostgresEventLog) Record(ctx context.Context, event models.ResolutionEvent) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO resolution_events (id, request_id, video_id, status, outcome, title_fallback, duration_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, event.ID, event.RequestID, event.VideoID, event.Status, event.Outcome, event.TitleFallback,
		event.Duration.Milliseconds(), event.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert resolution event: %w", err)
	}

	return nil
}

// Recent returns the newest events first, at most limit of them.
func (r *PostgresEventLog) Recent(ctx context.Context, limit int) ([]models.ResolutionEvent, error) {
	if limit <= 0 || limit > maxRecentEvents {
		limit = maxRecentEvents
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, request_id, video_id, status, outcome, title_fallback, duration_ms, created_at
        FROM resolution_events
        ORDER BY created_at DESC, id
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent resolution events: %w", err)
	}
	defer rows.Close()

	var events []models.ResolutionEvent
	for rows.Next() {
		var (
			event      models.ResolutionEvent
			durationMs int64
		)
		if err := rows.Scan(&event.ID, &event.RequestID, &event.VideoID, &event.Status, &event.Outcome,
			&event.TitleFallback, &durationMs, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resolution event: %w", err)
		}
		event.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolution events: %w", err)
	}

	return events, nil
}
