package domain

import (
	"time"

	"OutLight/pkg/uuidutil"
)

// StatusEvent is emitted on every state transition of a target.
type StatusEvent struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	From      State     `json:"from"`
	To        State     `json:"to"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	LatencyMS float64   `json:"latency_ms,omitempty"`
	At        time.Time `json:"at"`
}

func NewStatusEvent(target string, from, to State) StatusEvent {
	return StatusEvent{
		ID:     uuidutil.New(),
		Target: target,
		From:   from,
		To:     to,
		At:     time.Now(),
	}
}
