package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"OutLight/internal/domain"
)

func socketIOServer(t *testing.T, connectReply string, script func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"abc","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`))

		_, msg, err := conn.ReadMessage()
		if err != nil || string(msg) != "40" {
			t.Errorf("expected namespace connect, got %q (%v)", msg, err)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(connectReply))

		if script != nil {
			script(conn)
		}
	}))
}

func TestSocketIODialer_EventsAndHeartbeat(t *testing.T) {
	srv := socketIOServer(t, `40{"sid":"xyz"}`, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("2"))
		_, msg, err := conn.ReadMessage()
		if err != nil || string(msg) != "3" {
			t.Errorf("expected pong, got %q (%v)", msg, err)
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`42["newToken",{"mint":"abc"}]`))
		conn.WriteMessage(websocket.TextMessage, []byte("41"))
		conn.ReadMessage()
	})
	defer srv.Close()

	stream, err := NewSocketIODialer(time.Second).Dial(context.Background(),
		domain.EndpointTarget{Name: "sio", URL: wsURL(srv), Kind: domain.KindSocketIO})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stream.Close()

	data, err := stream.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(data) != `["newToken",{"mint":"abc"}]` {
		t.Fatalf("unexpected payload %q", data)
	}

	if _, err := stream.Receive(); !errors.Is(err, ErrRemoteClosed) {
		t.Fatalf("expected ErrRemoteClosed, got %v", err)
	}
}

func TestSocketIODialer_NamespaceRejected(t *testing.T) {
	srv := socketIOServer(t, `44{"message":"unauthorized"}`, nil)
	defer srv.Close()

	_, err := NewSocketIODialer(time.Second).Dial(context.Background(),
		domain.EndpointTarget{Name: "sio", URL: wsURL(srv), Kind: domain.KindSocketIO})
	if err == nil {
		t.Fatalf("expected error")
	}
	if kind := domain.ClassifyError(err); kind != domain.ErrKindProtocol {
		t.Fatalf("expected protocol_error, got %s", kind)
	}
}

func TestSocketIOURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"wss://prod.api.sauron.outlight.fun", "wss://prod.api.sauron.outlight.fun/socket.io/?EIO=4&transport=websocket"},
		{"https://example.com/", "wss://example.com/socket.io/?EIO=4&transport=websocket"},
		{"wss://prod.api.sauron.outlight.fun/socket.io/?EIO=4&transport=websocket", "wss://prod.api.sauron.outlight.fun/socket.io/?EIO=4&transport=websocket"},
	}

	for _, tt := range tests {
		got, err := socketIOURL(tt.in)
		if err != nil {
			t.Fatalf("socketIOURL(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("socketIOURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
