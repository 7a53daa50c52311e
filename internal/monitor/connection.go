package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/metrics"
	"OutLight/internal/status"
)

// ConnectionMonitor keeps one streaming connection open and reports its
// lifecycle through the target's status writer.
type ConnectionMonitor struct {
	target  domain.EndpointTarget
	dialer  Dialer
	writer  *status.Writer
	machine *Machine
	backoff Backoff
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewConnectionMonitor(target domain.EndpointTarget, dialer Dialer, writer *status.Writer,
	backoff Backoff, m *metrics.Metrics, logger *slog.Logger) *ConnectionMonitor {
	return &ConnectionMonitor{
		target:  target,
		dialer:  dialer,
		writer:  writer,
		machine: NewMachine(),
		backoff: backoff,
		metrics: m,
		logger:  logger.With("component", "connection_monitor", "target", target.Name),
	}
}

// Run reconnects forever until ctx is cancelled.
func (c *ConnectionMonitor) Run(ctx context.Context) error {
	c.logger.Info("Starting connection monitor", "url", c.target.URL)

	for {
		if ctx.Err() != nil {
			c.logger.Info("Stopping connection monitor")
			return nil
		}

		delay, ok := c.connectOnce(ctx)
		if !ok {
			c.logger.Info("Stopping connection monitor")
			return nil
		}

		c.logger.Debug("Reconnecting after delay", "delay", delay, "failures", c.machine.Failures())
		if !sleepCtx(ctx, delay) {
			c.logger.Info("Stopping connection monitor")
			return nil
		}
	}
}

// connectOnce runs one dial/consume cycle and returns the reconnect delay.
// ok is false when ctx ended during the cycle.
func (c *ConnectionMonitor) connectOnce(ctx context.Context) (time.Duration, bool) {
	c.fire(EventDial, func(st *domain.EndpointStatus) {
		st.TotalChecks++
	})

	stream, err := c.dialer.Dial(ctx, c.target)
	if err != nil {
		if ctx.Err() != nil {
			return 0, false
		}
		c.fail(EventHandshakeFailed, err)
		return c.backoff.Delay(c.machine.Failures()), true
	}

	c.fire(EventHandshakeOK, func(st *domain.EndpointStatus) {
		st.LastError = nil
	})
	if d, resolved := c.writer.Incidents().Resolve(c.target.Name); resolved {
		c.logger.Info("Connection recovered", "down_for", d.Round(time.Millisecond))
	} else {
		c.logger.Info("Connected")
	}

	err = c.consume(ctx, stream)
	stream.Close()

	if ctx.Err() != nil {
		return 0, false
	}

	if errors.Is(err, ErrRemoteClosed) {
		c.fire(EventRemoteClose, nil)
		c.logger.Info("Connection closed by remote")
		return c.backoff.Delay(1), true
	}

	c.fail(EventFailure, err)
	return c.backoff.Delay(c.machine.Failures()), true
}

func (c *ConnectionMonitor) consume(ctx context.Context, stream Stream) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-stop:
		}
	}()

	for {
		data, err := stream.Receive()
		if err != nil {
			return err
		}

		c.metrics.StreamMessage(c.target.Name)
		msg := preview(string(data))
		c.writer.Update(func(st *domain.EndpointStatus) {
			st.MessageCount++
			st.LastMessage = msg
			st.LastCheckedAt = time.Now()
		})
	}
}

func (c *ConnectionMonitor) fail(ev Event, err error) {
	kind := domain.ClassifyError(err)
	msg := err.Error()
	now := time.Now()

	c.fire(ev, func(st *domain.EndpointStatus) {
		st.TotalFailures++
		st.SetError(kind, msg, now)
	})

	// Сетевые ошибки часто проходят сами, поэтому сначала они ожидают
	incidents := c.writer.Incidents()
	switch kind {
	case domain.ErrKindNetworkTimeout, domain.ErrKindNetworkRefused:
		incidents.ReportPending(c.target.Name, kind, msg)
	default:
		incidents.ReportError(c.target.Name, kind, msg)
	}

	c.logger.Warn("Connection failed", "error", err, "kind", kind, "failures", c.machine.Failures())
}

func (c *ConnectionMonitor) fire(ev Event, fn func(st *domain.EndpointStatus)) {
	next, err := c.machine.Fire(ev)
	if err != nil {
		c.logger.Error("Rejected transition", "error", err)
		return
	}

	failures := c.machine.Failures()
	c.writer.Update(func(st *domain.EndpointStatus) {
		st.State = next
		st.ConsecutiveFailures = failures
		st.LastCheckedAt = time.Now()
		if fn != nil {
			fn(st)
		}
	})
	c.metrics.Transition(c.target.Name, next)
}
