package domain

import "time"

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeWarning Outcome = "warning"
	OutcomeError   Outcome = "error"
)

// State переводит результат проверки в состояние цели
func (o Outcome) State() State {
	switch o {
	case OutcomeSuccess:
		return StateConnected
	case OutcomeWarning:
		return StateWarning
	default:
		return StateError
	}
}

type CheckResult struct {
	Target     string    `json:"target"`
	Outcome    Outcome   `json:"outcome"`
	LatencyMS  float64   `json:"latency_ms,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Err        error     `json:"-"`
	ErrorKind  ErrorKind `json:"error_kind,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

func NewSuccessResult(target string, latency time.Duration, statusCode int) CheckResult {
	return CheckResult{
		Target:     target,
		Outcome:    OutcomeSuccess,
		LatencyMS:  DurationMS(latency),
		StatusCode: statusCode,
		CheckedAt:  time.Now(),
	}
}

func NewWarningResult(target string, latency time.Duration, statusCode int, err error) CheckResult {
	return CheckResult{
		Target:     target,
		Outcome:    OutcomeWarning,
		LatencyMS:  DurationMS(latency),
		StatusCode: statusCode,
		Err:        err,
		ErrorKind:  ClassifyError(err),
		CheckedAt:  time.Now(),
	}
}

func NewErrorResult(target string, err error) CheckResult {
	return CheckResult{
		Target:    target,
		Outcome:   OutcomeError,
		Err:       err,
		ErrorKind: ClassifyError(err),
		CheckedAt: time.Now(),
	}
}

// ErrorMessage is safe to call on successful results.
func (r CheckResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func DurationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
