package status

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

var (
	ErrAlreadyRegistered = errors.New("target already registered")
	ErrUnknownTarget     = errors.New("unknown target")
)

// EventSink receives state transitions. It must not block.
type EventSink func(event domain.StatusEvent)

// Aggregator holds the latest status of every target. Each entry has exactly
// one Writer; readers take snapshots at any time.
type Aggregator struct {
	mu      sync.RWMutex
	order   []*entry
	entries map[string]*entry

	incidents *IncidentLog
	activity  *ActivityLog
	sink      EventSink
	startedAt time.Time
}

type entry struct {
	mu     sync.RWMutex
	status domain.EndpointStatus
}

type Option func(*Aggregator)

func WithEventSink(sink EventSink) Option {
	return func(a *Aggregator) {
		a.sink = sink
	}
}

func WithIncidentLog(log *IncidentLog) Option {
	return func(a *Aggregator) {
		a.incidents = log
	}
}

func WithActivityLog(log *ActivityLog) Option {
	return func(a *Aggregator) {
		a.activity = log
	}
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		entries:   make(map[string]*entry),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.incidents == nil {
		a.incidents = NewIncidentLog()
	}
	if a.activity == nil {
		a.activity = NewActivityLog(constants.ActivityLogLimit)
	}
	return a
}

// Register creates the status entry for a target and returns its only writer.
func (a *Aggregator) Register(target domain.EndpointTarget) (*Writer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.entries[target.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, target.Name)
	}

	e := &entry{status: domain.NewEndpointStatus(target)}
	a.entries[target.Name] = e
	a.order = append(a.order, e)

	return &Writer{name: target.Name, entry: e, agg: a}, nil
}

func (a *Aggregator) Incidents() *IncidentLog {
	return a.incidents
}

// Activity is the feed of state changes shown in the Telegram logs view.
func (a *Aggregator) Activity() *ActivityLog {
	return a.activity
}

func (a *Aggregator) StartedAt() time.Time {
	return a.startedAt
}

// Status returns a copy of one target's status.
func (a *Aggregator) Status(name string) (domain.EndpointStatus, error) {
	a.mu.RLock()
	e, ok := a.entries[name]
	a.mu.RUnlock()

	if !ok {
		return domain.EndpointStatus{}, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return e.read(), nil
}

// Snapshot copies every entry under its own read lock. Entries are never torn;
// different entries may be observed at slightly different moments.
func (a *Aggregator) Snapshot() domain.Snapshot {
	a.mu.RLock()
	entries := make([]*entry, len(a.order))
	copy(entries, a.order)
	a.mu.RUnlock()

	statuses := make([]domain.EndpointStatus, 0, len(entries))
	for _, e := range entries {
		statuses = append(statuses, e.read())
	}

	return domain.Snapshot{
		TakenAt:      time.Now(),
		StartedAt:    a.startedAt,
		Statuses:     statuses,
		RecentErrors: a.incidents.Recent(),
		Pending:      a.incidents.Pending(),
	}
}

func (e *entry) read() domain.EndpointStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := e.status
	if st.LastError != nil {
		le := *st.LastError
		st.LastError = &le
	}
	return st
}

// Writer is the single mutator of one target's status.
type Writer struct {
	name  string
	entry *entry
	agg   *Aggregator
}

func (w *Writer) Name() string {
	return w.name
}

// Update applies fn to the status atomically and emits a StatusEvent when the
// state changed.
func (w *Writer) Update(fn func(st *domain.EndpointStatus)) domain.EndpointStatus {
	w.entry.mu.Lock()
	from := w.entry.status.State
	fn(&w.entry.status)
	w.entry.status.Name = w.name
	after := w.entry.status
	w.entry.mu.Unlock()

	if after.State == from {
		return after
	}

	event := domain.NewStatusEvent(w.name, from, after.State)
	event.LatencyMS = after.LastLatencyMS
	if after.LastError != nil && (after.State == domain.StateError || after.State == domain.StateWarning) {
		event.ErrorKind = after.LastError.Kind
		event.Message = after.LastError.Message
	}

	msg := fmt.Sprintf("%s -> %s", from, after.State)
	if event.Message != "" {
		msg += ": " + event.Message
	}
	w.agg.activity.Add(domain.ActivityLevelFor(after.State), w.name, msg)

	if w.agg.sink != nil {
		w.agg.sink(event)
	}

	return after
}

func (w *Writer) Incidents() *IncidentLog {
	return w.agg.incidents
}
