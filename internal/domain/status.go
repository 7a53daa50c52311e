package domain

import "time"

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
	StateWarning      State = "warning"
)

type LastError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// EndpointStatus is written only through the owning target's writer handle.
type EndpointStatus struct {
	Name                string     `json:"name"`
	Kind                TargetKind `json:"kind"`
	URL                 string     `json:"url"`
	State               State      `json:"state"`
	LastLatencyMS       float64    `json:"last_latency_ms"`
	LastCheckedAt       time.Time  `json:"last_checked_at"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalChecks         int64      `json:"total_checks"`
	TotalFailures       int64      `json:"total_failures"`
	MessageCount        int64      `json:"message_count"`
	LastMessage         string     `json:"last_message,omitempty"`
	LastError           *LastError `json:"last_error,omitempty"`
}

// NewEndpointStatus возвращает начальный статус для цели
func NewEndpointStatus(target EndpointTarget) EndpointStatus {
	return EndpointStatus{
		Name:  target.Name,
		Kind:  target.Kind,
		URL:   target.URL,
		State: StateDisconnected,
	}
}

func (s *EndpointStatus) SetError(kind ErrorKind, message string, at time.Time) {
	s.LastError = &LastError{Kind: kind, Message: message, At: at}
}

type IncidentStatus string

const (
	IncidentPending   IncidentStatus = "pending"
	IncidentResolved  IncidentStatus = "resolved"
	IncidentConfirmed IncidentStatus = "confirmed"
)

type Incident struct {
	Source  string         `json:"source"`
	Message string         `json:"message"`
	Kind    ErrorKind      `json:"kind"`
	At      time.Time      `json:"at"`
	Status  IncidentStatus `json:"status"`
}

// Snapshot is a point-in-time copy, valid for a single render cycle.
type Snapshot struct {
	TakenAt      time.Time        `json:"taken_at"`
	StartedAt    time.Time        `json:"started_at"`
	Statuses     []EndpointStatus `json:"statuses"`
	RecentErrors []Incident       `json:"recent_errors"`
	Pending      []Incident       `json:"pending"`
}

func (s Snapshot) Uptime() time.Duration {
	return s.TakenAt.Sub(s.StartedAt)
}

// ByKind возвращает статусы только указанных типов, в исходном порядке
func (s Snapshot) ByKind(kinds ...TargetKind) []EndpointStatus {
	out := make([]EndpointStatus, 0, len(s.Statuses))
	for _, st := range s.Statuses {
		for _, k := range kinds {
			if st.Kind == k {
				out = append(out, st)
				break
			}
		}
	}
	return out
}

func (s Snapshot) TotalMessages() int64 {
	var total int64
	for _, st := range s.Statuses {
		total += st.MessageCount
	}
	return total
}

func (s Snapshot) TotalAPICalls() int64 {
	var total int64
	for _, st := range s.Statuses {
		if st.Kind == KindHTTP {
			total += st.TotalChecks
		}
	}
	return total
}
