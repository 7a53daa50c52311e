package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"OutLight/internal/domain"
)

const namespace = "outlight"

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	checks         *prometheus.CounterVec
	checkLatency   *prometheus.HistogramVec
	skippedTicks   *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	streamMessages *prometheus.CounterVec
	telegramCalls  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	liveClients    prometheus.Gauge
	droppedEvents  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Endpoint checks by target and outcome.",
		}, []string{"target", "outcome"}),
		checkLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_latency_seconds",
			Help:      "Latency of successful and non-2xx endpoint checks.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target"}),
		skippedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_ticks_total",
			Help:      "Check ticks skipped because the previous check was still running.",
		}, []string{"target"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Target state transitions by destination state.",
		}, []string{"target", "state"}),
		streamMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "Frames received on streaming connections.",
		}, []string{"target"}),
		telegramCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_calls_total",
			Help:      "Bot API calls by operation and result.",
		}, []string{"op", "result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "telegram_active_sessions",
			Help:      "Chats currently receiving live updates.",
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_live_clients",
			Help:      "Dashboard websocket clients connected.",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Status events dropped because the recorder queue was full.",
		}),
	}

	m.registry.MustRegister(
		m.checks,
		m.checkLatency,
		m.skippedTicks,
		m.transitions,
		m.streamMessages,
		m.telegramCalls,
		m.activeSessions,
		m.liveClients,
		m.droppedEvents,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveCheck(result domain.CheckResult) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(result.Target, string(result.Outcome)).Inc()
	if result.Outcome != domain.OutcomeError {
		m.checkLatency.WithLabelValues(result.Target).Observe(result.LatencyMS / 1000)
	}
}

func (m *Metrics) SkippedTick(target string) {
	if m == nil {
		return
	}
	m.skippedTicks.WithLabelValues(target).Inc()
}

func (m *Metrics) Transition(target string, to domain.State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target, string(to)).Inc()
}

func (m *Metrics) StreamMessage(target string) {
	if m == nil {
		return
	}
	m.streamMessages.WithLabelValues(target).Inc()
}

func (m *Metrics) TelegramCall(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(domain.ClassifyError(err))
	}
	m.telegramCalls.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) SetLiveClients(n int) {
	if m == nil {
		return
	}
	m.liveClients.Set(float64(n))
}

func (m *Metrics) DroppedEvent() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}
