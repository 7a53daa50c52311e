package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

const sessionKeyPrefix = "telegram_session:"

func sessionKey(chat domain.Chat) string {
	key := sessionKeyPrefix + strconv.FormatInt(chat.ID, 10)
	if chat.ThreadID != 0 {
		key += ":" + strconv.Itoa(chat.ThreadID)
	}
	return key
}

type redisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client, ttl: constants.SessionTTL}
}

func (s *redisSessionStore) Save(ctx context.Context, rec SessionRecord) error {
	rec.SavedAt = time.Now()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(rec.Chat), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.Chat, err)
	}
	return nil
}

func (s *redisSessionStore) Load(ctx context.Context, chat domain.Chat) (SessionRecord, error) {
	data, err := s.client.Get(ctx, sessionKey(chat)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionRecord{}, ErrSessionNotFound
		}
		return SessionRecord{}, fmt.Errorf("failed to load session %s: %w", chat, err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return SessionRecord{}, fmt.Errorf("failed to unmarshal session %s: %w", chat, err)
	}
	return rec, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, chat domain.Chat) error {
	n, err := s.client.Del(ctx, sessionKey(chat)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", chat, err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// List skips entries that no longer decode.
func (s *redisSessionStore) List(ctx context.Context) ([]SessionRecord, error) {
	var records []SessionRecord

	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", iter.Val(), err)
		}

		var rec SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sortRecords(records)
	return records, nil
}

func (s *redisSessionStore) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	purged := 0
	for _, rec := range records {
		if rec.StartedAt.After(cutoff) {
			continue
		}
		if err := s.client.Del(ctx, sessionKey(rec.Chat)).Err(); err != nil {
			return purged, fmt.Errorf("failed to purge session %s: %w", rec.Chat, err)
		}
		purged++
	}
	return purged, nil
}

// memorySessionStore is used when Redis is unavailable. Sessions do not
// survive a restart.
type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[domain.Chat]SessionRecord
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{sessions: make(map[domain.Chat]SessionRecord)}
}

func (s *memorySessionStore) Save(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.SavedAt = time.Now()
	s.sessions[rec.Chat] = rec
	return nil
}

func (s *memorySessionStore) Load(_ context.Context, chat domain.Chat) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[chat]
	if !ok {
		return SessionRecord{}, ErrSessionNotFound
	}
	return rec, nil
}

func (s *memorySessionStore) Delete(_ context.Context, chat domain.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[chat]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, chat)
	return nil
}

func (s *memorySessionStore) List(_ context.Context) ([]SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

func (s *memorySessionStore) PurgeOlderThan(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	purged := 0
	for chat, rec := range s.sessions {
		if !rec.StartedAt.After(cutoff) {
			delete(s.sessions, chat)
			purged++
		}
	}
	return purged, nil
}

func sortRecords(records []SessionRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
