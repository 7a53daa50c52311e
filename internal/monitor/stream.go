package monitor

import (
	"context"
	"errors"

	"OutLight/internal/domain"
)

// ErrRemoteClosed reports a clean close initiated by the remote side.
var ErrRemoteClosed = errors.New("connection closed by remote")

// Stream is an established streaming connection. Receive blocks until the next
// data frame arrives and is called from one goroutine only. Close may be called
// concurrently with Receive to unblock it.
type Stream interface {
	Receive() ([]byte, error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, target domain.EndpointTarget) (Stream, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, target domain.EndpointTarget) (Stream, error)

func (f DialerFunc) Dial(ctx context.Context, target domain.EndpointTarget) (Stream, error) {
	return f(ctx, target)
}
