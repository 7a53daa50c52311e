package status

import (
	"sync"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

// ActivityLog keeps the last entries of the monitoring feed, oldest first.
type ActivityLog struct {
	mu      sync.Mutex
	entries []domain.ActivityEntry
	limit   int
	now     func() time.Time
}

func NewActivityLog(limit int) *ActivityLog {
	if limit <= 0 {
		limit = constants.ActivityLogLimit
	}
	return &ActivityLog{limit: limit, now: time.Now}
}

func (l *ActivityLog) Add(level domain.ActivityLevel, source, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, domain.ActivityEntry{
		At:      l.now(),
		Level:   level,
		Source:  source,
		Message: truncate(message, constants.IncidentMessageLen),
	})
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
}

func (l *ActivityLog) Entries() []domain.ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
