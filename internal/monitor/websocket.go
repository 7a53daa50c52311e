package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

type WebSocketDialer struct {
	dialer       *websocket.Dialer
	header       http.Header
	pingInterval time.Duration
	pingTimeout  time.Duration
}

func NewWebSocketDialer(handshakeTimeout time.Duration) *WebSocketDialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = constants.HandshakeTimeout
	}

	header := http.Header{}
	header.Set("User-Agent", "OutLight-Monitor/1.0")

	return &WebSocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		header:       header,
		pingInterval: constants.WSPingInterval,
		pingTimeout:  constants.WSPingTimeout,
	}
}

func (d *WebSocketDialer) Dial(ctx context.Context, target domain.EndpointTarget) (Stream, error) {
	conn, err := dialConn(ctx, d.dialer, target.URL, d.header)
	if err != nil {
		return nil, err
	}
	return newWebSocketStream(conn, d.pingInterval, d.pingTimeout), nil
}

func dialConn(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header) (*websocket.Conn, error) {
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, domain.WithKind(domain.ErrKindProtocol,
				fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err))
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// wsConn holds the close bookkeeping shared by both stream flavours.
type wsConn struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, done: make(chan struct{})}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func translateReadError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrRemoteClosed
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return domain.WithKind(domain.ErrKindProtocol, err)
	}
	return err
}

type webSocketStream struct {
	*wsConn
	readTimeout time.Duration
}

// newWebSocketStream starts the ping loop. The read deadline is pushed forward
// by every pong and every frame.
func newWebSocketStream(conn *websocket.Conn, pingInterval, pingTimeout time.Duration) *webSocketStream {
	s := &webSocketStream{
		wsConn:      newWSConn(conn),
		readTimeout: pingInterval + pingTimeout,
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	go s.pingLoop(pingInterval, pingTimeout)
	return s
}

func (s *webSocketStream) pingLoop(interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				return
			}
		}
	}
}

func (s *webSocketStream) Receive() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if s.closed() {
			return nil, context.Canceled
		}
		return nil, translateReadError(err)
	}

	_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	return data, nil
}
