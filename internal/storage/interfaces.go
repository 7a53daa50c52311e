package storage

import (
	"context"
	"errors"
	"time"

	"OutLight/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRecord is the persisted form of a Telegram live session.
type SessionRecord struct {
	ID        string      `json:"id"`
	Chat      domain.Chat `json:"chat"`
	UserName  string      `json:"user_name,omitempty"`
	StartedAt time.Time   `json:"started_at"`
	MessageID int         `json:"message_id,omitempty"`
	SavedAt   time.Time   `json:"saved_at"`
}

// SessionStore интерфейс для хранения сессий Telegram
type SessionStore interface {
	Save(ctx context.Context, rec SessionRecord) error
	Load(ctx context.Context, chat domain.Chat) (SessionRecord, error)
	Delete(ctx context.Context, chat domain.Chat) error
	List(ctx context.Context) ([]SessionRecord, error)
	PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error)
}

// HistoryStore интерфейс для истории переходов состояний
type HistoryStore interface {
	Save(ctx context.Context, event domain.StatusEvent) error
	ListByTarget(ctx context.Context, target string, limit int) ([]domain.StatusEvent, error)
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// EventPublisher рассылает события переходов подписчикам
type EventPublisher interface {
	Publish(ctx context.Context, event domain.StatusEvent) error
}
