package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/metrics"
	"OutLight/internal/probe"
	"OutLight/internal/shared/constants"
	"OutLight/internal/status"
)

// Checker polls one request/response target on a fixed interval. At most one
// check per target is in flight; a tick that finds one running is skipped.
type Checker struct {
	target   domain.EndpointTarget
	probe    probe.Probe
	writer   *status.Writer
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup
}

func NewChecker(target domain.EndpointTarget, p probe.Probe, writer *status.Writer,
	m *metrics.Metrics, logger *slog.Logger) *Checker {
	interval := target.CheckInterval
	if interval <= 0 {
		interval = constants.APICheckInterval
	}

	return &Checker{
		target:   target,
		probe:    p,
		writer:   writer,
		interval: interval,
		metrics:  m,
		logger:   logger.With("component", "checker", "target", target.Name),
	}
}

// Run checks immediately and then on every tick until ctx is cancelled. It
// waits for an in-flight check before returning.
func (c *Checker) Run(ctx context.Context) error {
	c.logger.Info("Starting checker", "url", c.target.URL, "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			c.logger.Info("Stopping checker")
			return nil
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick starts a check in the background unless one is already running.
func (c *Checker) tick(ctx context.Context) bool {
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("Previous check still running, skipping tick")
		c.metrics.SkippedTick(c.target.Name)
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.busy.Store(false)
		c.CheckOnce(ctx)
	}()
	return true
}

// CheckOnce runs the probe synchronously and records the result.
func (c *Checker) CheckOnce(ctx context.Context) domain.CheckResult {
	result := c.probe.Execute(ctx, c.target)
	if ctx.Err() != nil && result.Outcome == domain.OutcomeError {
		return result
	}

	c.metrics.ObserveCheck(result)
	c.apply(result)
	return result
}

func (c *Checker) apply(result domain.CheckResult) {
	next := result.Outcome.State()

	var prev domain.State
	c.writer.Update(func(st *domain.EndpointStatus) {
		prev = st.State
		st.State = next
		st.TotalChecks++
		st.LastCheckedAt = result.CheckedAt

		if result.Outcome == domain.OutcomeError {
			st.LastLatencyMS = 0
		} else {
			st.LastLatencyMS = result.LatencyMS
		}

		if result.Outcome == domain.OutcomeSuccess {
			st.ConsecutiveFailures = 0
			st.LastError = nil
			return
		}

		st.ConsecutiveFailures++
		st.TotalFailures++
		st.SetError(result.ErrorKind, result.ErrorMessage(), result.CheckedAt)
	})
	if prev != next {
		c.metrics.Transition(c.target.Name, next)
	}

	switch result.Outcome {
	case domain.OutcomeSuccess:
		c.writer.Incidents().Resolve(c.target.Name)
		c.logger.Debug("Check succeeded", "latency_ms", result.LatencyMS, "status_code", result.StatusCode)
	case domain.OutcomeWarning:
		c.writer.Incidents().ReportError(c.target.Name, result.ErrorKind, result.ErrorMessage())
		c.logger.Warn("Check returned non-success", "status_code", result.StatusCode, "latency_ms", result.LatencyMS)
	default:
		c.writer.Incidents().ReportError(c.target.Name, result.ErrorKind, result.ErrorMessage())
		c.logger.Error("Check failed", "error", result.Err, "kind", result.ErrorKind)
	}
}
