package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

type ErrorKind string

const (
	ErrKindNetworkTimeout    ErrorKind = "network_timeout"
	ErrKindNetworkRefused    ErrorKind = "network_refused"
	ErrKindProtocol          ErrorKind = "protocol_error"
	ErrKindHTTPNon2xx        ErrorKind = "http_non_2xx"
	ErrKindRateLimited       ErrorKind = "rate_limited"
	ErrKindMessageEditFailed ErrorKind = "message_edit_failed"
	ErrKindUnknown           ErrorKind = "unknown"
)

// KindError lets a package attach a taxonomy kind to its own errors.
type KindError struct {
	Kind ErrorKind
	Err  error
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KindError) Unwrap() error {
	return e.Err
}

func WithKind(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// HTTPStatusError is returned by probes for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// ClassifyError maps an error onto the monitoring taxonomy.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var kindErr *KindError
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return ErrKindHTTPNon2xx
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindNetworkTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindNetworkTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrKindNetworkRefused
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ErrKindNetworkTimeout
		}
		return ErrKindNetworkRefused
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrKindNetworkRefused
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return ErrKindNetworkTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return ErrKindNetworkRefused
	case strings.Contains(msg, "bad handshake"), strings.Contains(msg, "websocket"):
		return ErrKindProtocol
	}

	return ErrKindUnknown
}
