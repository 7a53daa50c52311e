package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

// Engine.IO v4 / Socket.IO v5 packet prefixes.
const (
	eioOpen    = "0"
	eioClose   = "1"
	eioPing    = "2"
	eioPong    = "3"
	eioNoop    = "6"
	sioConnect = "40"
	sioDisconn = "41"
	sioEvent   = "42"
	sioError   = "44"
)

type engineOpen struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

type SocketIODialer struct {
	dialer           *websocket.Dialer
	header           http.Header
	handshakeTimeout time.Duration
}

func NewSocketIODialer(handshakeTimeout time.Duration) *SocketIODialer {
	if handshakeTimeout <= 0 {
		handshakeTimeout = constants.HandshakeTimeout
	}

	header := http.Header{}
	header.Set("User-Agent", "OutLight-Monitor/1.0")

	return &SocketIODialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		header:           header,
		handshakeTimeout: handshakeTimeout,
	}
}

// Dial opens the websocket transport and performs the Engine.IO open and the
// Socket.IO namespace connect before returning.
func (d *SocketIODialer) Dial(ctx context.Context, target domain.EndpointTarget) (Stream, error) {
	endpoint, err := socketIOURL(target.URL)
	if err != nil {
		return nil, domain.WithKind(domain.ErrKindProtocol, err)
	}

	conn, err := dialConn(ctx, d.dialer, endpoint, d.header)
	if err != nil {
		return nil, err
	}

	s := &socketIOStream{wsConn: newWSConn(conn)}
	if err := s.handshake(d.handshakeTimeout); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// socketIOURL adds the Engine.IO query to a bare server URL.
func socketIOURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid socket.io url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	if !strings.Contains(u.Path, "/socket.io") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/socket.io/"
	}

	q := u.Query()
	if q.Get("EIO") == "" {
		q.Set("EIO", "4")
	}
	if q.Get("transport") == "" {
		q.Set("transport", "websocket")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

type socketIOStream struct {
	*wsConn
	readTimeout time.Duration
}

func (s *socketIOStream) handshake(timeout time.Duration) error {
	_ = s.conn.SetReadDeadline(time.Now().Add(timeout))

	packet, err := s.readText()
	if err != nil {
		return fmt.Errorf("engine.io open: %w", err)
	}
	if !strings.HasPrefix(packet, eioOpen) {
		return domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("unexpected open packet %q", preview(packet)))
	}

	var open engineOpen
	if err := json.Unmarshal([]byte(packet[1:]), &open); err != nil {
		return domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("decode open packet: %w", err))
	}
	s.readTimeout = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	if s.readTimeout <= 0 {
		s.readTimeout = constants.WSPingInterval + constants.WSPingTimeout
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(sioConnect)); err != nil {
		return fmt.Errorf("namespace connect: %w", err)
	}

	for {
		packet, err := s.readText()
		if err != nil {
			return fmt.Errorf("namespace connect: %w", err)
		}

		switch {
		case packet == eioPing:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(eioPong)); err != nil {
				return err
			}
		case strings.HasPrefix(packet, sioConnect):
			_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			return nil
		case strings.HasPrefix(packet, sioError):
			return domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("namespace rejected: %s", packet[2:]))
		default:
			return domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("unexpected packet during connect %q", preview(packet)))
		}
	}
}

func (s *socketIOStream) readText() (string, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if s.closed() {
			return "", context.Canceled
		}
		return "", translateReadError(err)
	}
	return string(data), nil
}

// Receive answers heartbeats itself and returns only application packets.
func (s *socketIOStream) Receive() ([]byte, error) {
	for {
		packet, err := s.readText()
		if err != nil {
			return nil, err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))

		switch {
		case packet == eioPing:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte(eioPong)); err != nil {
				return nil, err
			}
		case packet == eioNoop, packet == eioPong:
		case packet == eioClose, strings.HasPrefix(packet, sioDisconn):
			return nil, ErrRemoteClosed
		case strings.HasPrefix(packet, sioError):
			return nil, domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("socket.io error: %s", packet[2:]))
		case strings.HasPrefix(packet, sioEvent):
			return []byte(packet[2:]), nil
		default:
			return []byte(packet), nil
		}
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > constants.MessagePreviewLen {
		return string(r[:constants.MessagePreviewLen])
	}
	return s
}
