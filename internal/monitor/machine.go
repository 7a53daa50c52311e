package monitor

import (
	"errors"
	"fmt"

	"OutLight/internal/domain"
)

var ErrIllegalTransition = errors.New("illegal state transition")

type Event string

const (
	EventDial            Event = "dial"
	EventHandshakeOK     Event = "handshake_ok"
	EventHandshakeFailed Event = "handshake_failed"
	EventRemoteClose     Event = "remote_close"
	EventFailure         Event = "failure"
)

var transitions = map[domain.State]map[Event]domain.State{
	domain.StateDisconnected: {
		EventDial: domain.StateConnecting,
	},
	domain.StateConnecting: {
		EventHandshakeOK:     domain.StateConnected,
		EventHandshakeFailed: domain.StateError,
	},
	domain.StateConnected: {
		EventRemoteClose: domain.StateDisconnected,
		EventFailure:     domain.StateError,
	},
	domain.StateError: {
		EventDial: domain.StateConnecting,
	},
}

// Machine is the connection state machine of one streaming target. It is
// owned by a single monitor goroutine and is not safe for concurrent use.
type Machine struct {
	state    domain.State
	failures int
}

func NewMachine() *Machine {
	return &Machine{state: domain.StateDisconnected}
}

func (m *Machine) State() domain.State {
	return m.state
}

func (m *Machine) Failures() int {
	return m.failures
}

// Fire applies ev. On an illegal event the state is left unchanged.
func (m *Machine) Fire(ev Event) (domain.State, error) {
	next, ok := transitions[m.state][ev]
	if !ok {
		return m.state, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, m.state)
	}

	switch ev {
	case EventHandshakeOK:
		m.failures = 0
	case EventHandshakeFailed, EventFailure:
		m.failures++
	}

	m.state = next
	return next, nil
}
