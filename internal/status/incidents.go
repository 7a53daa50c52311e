package status

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

// IncidentLog keeps the last recent errors and the connection errors that
// have not yet been confirmed. A pending incident is confirmed once it stays
// unresolved for longer than the grace period.
type IncidentLog struct {
	mu      sync.Mutex
	recent  []domain.Incident
	pending map[string]domain.Incident
	history []domain.Incident

	grace       time.Duration
	recentLimit int
	historySize int
	now         func() time.Time
	logger      *slog.Logger
}

func NewIncidentLog() *IncidentLog {
	return &IncidentLog{
		pending:     make(map[string]domain.Incident),
		grace:       constants.PendingErrorGrace,
		recentLimit: constants.RecentErrorsLimit,
		historySize: constants.PendingHistorySize,
		now:         time.Now,
		logger:      slog.Default(),
	}
}

func (l *IncidentLog) WithLogger(logger *slog.Logger) *IncidentLog {
	l.logger = logger
	return l
}

// WithGrace sets how long a pending error may stay unresolved.
func (l *IncidentLog) WithGrace(grace time.Duration) *IncidentLog {
	if grace > 0 {
		l.grace = grace
	}
	return l
}

// ReportError records an immediate error.
func (l *IncidentLog) ReportError(source string, kind domain.ErrorKind, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pushRecent(domain.Incident{
		Source:  source,
		Message: truncate(message, constants.IncidentMessageLen),
		Kind:    kind,
		At:      l.now(),
		Status:  domain.IncidentConfirmed,
	})
}

// ReportPending records a connection error that may still recover. Repeated
// reports keep the time of the first one.
func (l *IncidentLog) ReportPending(source string, kind domain.ErrorKind, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := truncate(message, constants.IncidentMessageLen)
	if existing, ok := l.pending[source]; ok {
		existing.Message = msg
		existing.Kind = kind
		l.pending[source] = existing
		return
	}

	inc := domain.Incident{
		Source:  source,
		Message: msg,
		Kind:    kind,
		At:      l.now(),
		Status:  domain.IncidentPending,
	}
	l.pending[source] = inc

	l.history = append(l.history, inc)
	if len(l.history) > l.historySize {
		l.history = l.history[len(l.history)-l.historySize:]
	}
}

// Resolve drops the pending incident of source and reports how long it lasted.
func (l *IncidentLog) Resolve(source string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inc, ok := l.pending[source]
	if !ok {
		return 0, false
	}
	delete(l.pending, source)
	l.markHistory(inc, domain.IncidentResolved)

	return l.now().Sub(inc.At), true
}

// PromoteExpired moves pending incidents older than the grace period into the
// recent errors list.
func (l *IncidentLog) PromoteExpired() []domain.Incident {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var promoted []domain.Incident
	for source, inc := range l.pending {
		if now.Sub(inc.At) <= l.grace {
			continue
		}
		delete(l.pending, source)
		l.markHistory(inc, domain.IncidentConfirmed)

		confirmed := inc
		confirmed.Status = domain.IncidentConfirmed
		confirmed.Message = fmt.Sprintf("%s (connection failed for >%s)", inc.Message, l.grace)
		confirmed.At = now
		l.pushRecent(confirmed)
		promoted = append(promoted, confirmed)
	}

	return promoted
}

// Run promotes expired pending incidents until ctx is done.
func (l *IncidentLog) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, inc := range l.PromoteExpired() {
				l.logger.Warn("pending error confirmed",
					"source", inc.Source,
					"kind", inc.Kind,
					"message", inc.Message,
				)
			}
		}
	}
}

func (l *IncidentLog) ClearRecent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent = nil
}

// Recent returns recent errors, newest first.
func (l *IncidentLog) Recent() []domain.Incident {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Incident, len(l.recent))
	copy(out, l.recent)
	return out
}

// Pending returns unresolved incidents ordered by time.
func (l *IncidentLog) Pending() []domain.Incident {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Incident, 0, len(l.pending))
	for _, inc := range l.pending {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Source < out[j].Source
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (l *IncidentLog) History() []domain.Incident {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.Incident, len(l.history))
	copy(out, l.history)
	return out
}

func (l *IncidentLog) pushRecent(inc domain.Incident) {
	l.recent = append([]domain.Incident{inc}, l.recent...)
	if len(l.recent) > l.recentLimit {
		l.recent = l.recent[:l.recentLimit]
	}
}

func (l *IncidentLog) markHistory(inc domain.Incident, status domain.IncidentStatus) {
	for i := len(l.history) - 1; i >= 0; i-- {
		h := l.history[i]
		if h.Source == inc.Source && h.At.Equal(inc.At) && h.Status == domain.IncidentPending {
			l.history[i].Status = status
			return
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
