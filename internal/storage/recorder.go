package storage

import (
	"context"
	"log/slog"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/metrics"
)

const writeTimeout = 5 * time.Second

// Recorder persists status events off the monitoring path. Submit never
// blocks; when the queue is full the event is dropped.
type Recorder struct {
	events    chan domain.StatusEvent
	history   HistoryStore
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewRecorder accepts nil history or publisher.
func NewRecorder(buffer int, history HistoryStore, publisher EventPublisher, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 1
	}
	return &Recorder{
		events:    make(chan domain.StatusEvent, buffer),
		history:   history,
		publisher: publisher,
		metrics:   m,
		logger:    logger.With("component", "recorder"),
	}
}

func (r *Recorder) Submit(event domain.StatusEvent) bool {
	select {
	case r.events <- event:
		return true
	default:
		r.metrics.DroppedEvent()
		r.logger.Warn("Event queue full, dropping event", "target", event.Target, "to", event.To)
		return false
	}
}

// Run writes events until ctx is done, then flushes what is already queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return nil
		case ev := <-r.events:
			r.write(context.WithoutCancel(ctx), ev)
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case ev := <-r.events:
			r.write(context.Background(), ev)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, ev domain.StatusEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if r.history != nil {
		if err := r.history.Save(ctx, ev); err != nil {
			r.logger.Error("Failed to save event", "error", err, "target", ev.Target)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.logger.Error("Failed to publish event", "error", err, "target", ev.Target)
		}
	}
}
