package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"OutLight/internal/domain"
)

type historyStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) HistoryStore {
	return &historyStore{pool: pool}
}

func (s *historyStore) Save(ctx context.Context, event domain.StatusEvent) error {
	query := `
		INSERT INTO status_events (id, target, from_state, to_state, error_kind, message, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query,
		event.ID,
		event.Target,
		string(event.From),
		string(event.To),
		string(event.ErrorKind),
		event.Message,
		event.LatencyMS,
		event.At,
	)
	if err != nil {
		return fmt.Errorf("failed to save status event: %w", err)
	}

	return nil
}

// ListByTarget возвращает последние события цели, новые первыми
func (s *historyStore) ListByTarget(ctx context.Context, target string, limit int) ([]domain.StatusEvent, error) {
	query := `
		SELECT id::text, target, from_state, to_state, error_kind, message, latency_ms, created_at
		FROM status_events
		WHERE target = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query status events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *historyStore) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM status_events WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old events: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanEvents(rows pgx.Rows) ([]domain.StatusEvent, error) {
	events := make([]domain.StatusEvent, 0)

	for rows.Next() {
		var (
			ev             domain.StatusEvent
			from, to, kind string
		)
		if err := rows.Scan(&ev.ID, &ev.Target, &from, &to, &kind, &ev.Message, &ev.LatencyMS, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.From = domain.State(from)
		ev.To = domain.State(to)
		ev.ErrorKind = domain.ErrorKind(kind)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}
