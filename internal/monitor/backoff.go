package monitor

import (
	"context"
	"time"
)

const (
	DefaultBackoffBase = 5 * time.Second
	DefaultBackoffMax  = 60 * time.Second
)

// Backoff grows linearly with the failure count and is capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBackoffBase, Max: DefaultBackoffMax}
}

// Delay returns min(failures*Base, Max). Counts below one are treated as one.
func (b Backoff) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}

	if b.Max > 0 && b.Base > 0 && time.Duration(failures) > b.Max/b.Base {
		return b.Max
	}

	d := time.Duration(failures) * b.Base
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// sleepCtx reports false when ctx ended before d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
