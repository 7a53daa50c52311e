package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"OutLight/internal/domain"
	"OutLight/internal/metrics"
)

type staticSource struct {
	snap domain.Snapshot
}

func (s staticSource) Snapshot() domain.Snapshot {
	return s.snap
}

type fakeHistory struct {
	events []domain.StatusEvent
	err    error
	target string
	limit  int
}

func (f *fakeHistory) Save(context.Context, domain.StatusEvent) error { return nil }

func (f *fakeHistory) ListByTarget(_ context.Context, target string, limit int) ([]domain.StatusEvent, error) {
	f.target, f.limit = target, limit
	return f.events, f.err
}

func (f *fakeHistory) DeleteOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

func testSnapshot() domain.Snapshot {
	now := time.Now()
	return domain.Snapshot{
		TakenAt:   now,
		StartedAt: now.Add(-time.Hour),
		Statuses: []domain.EndpointStatus{
			{Name: "Price WebSocket", Kind: domain.KindWebSocket, State: domain.StateConnected, MessageCount: 5},
			{Name: "API /api/channels", Kind: domain.KindHTTP, State: domain.StateError},
		},
	}
}

func newTestServer(t *testing.T, history *fakeHistory) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &Config{Port: 5000, Mode: "test", PushInterval: 20 * time.Millisecond}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if history == nil {
		return New(cfg, staticSource{snap: testSnapshot()}, nil, metrics.New(), logger)
	}
	return New(cfg, staticSource{snap: testSnapshot()}, history, metrics.New(), logger)
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.GetRouter().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	w := doRequest(newTestServer(t, nil), http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestServer_Status(t *testing.T) {
	w := doRequest(newTestServer(t, nil), http.MethodGet, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Healthy || body.Targets != 2 || body.Connected != 1 || body.Uptime != "1:00:00" {
		t.Fatalf("unexpected summary %+v", body)
	}
	if len(body.Failing) != 1 || body.Failing[0] != "API /api/channels" {
		t.Fatalf("unexpected failing targets %v", body.Failing)
	}
	if body.Snapshot.Statuses[0].Name != "Price WebSocket" || body.Snapshot.Statuses[1].State != domain.StateError {
		t.Fatalf("snapshot order or content changed: %+v", body.Snapshot.Statuses)
	}
}

func TestNewStatusResponse_Healthy(t *testing.T) {
	snap := testSnapshot()
	snap.Statuses[1].State = domain.StateConnected

	if resp := newStatusResponse(snap); !resp.Healthy || len(resp.Failing) != 0 {
		t.Fatalf("expected healthy summary, got %+v", resp)
	}
	if resp := newStatusResponse(domain.Snapshot{}); resp.Healthy {
		t.Fatalf("no targets must not read as healthy")
	}
}

func TestServer_Index(t *testing.T) {
	w := doRequest(newTestServer(t, nil), http.MethodGet, "/")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "OutLight") {
		t.Fatalf("unexpected index response %d", w.Code)
	}
}

func TestServer_HistoryDisabled(t *testing.T) {
	w := doRequest(newTestServer(t, nil), http.MethodGet, "/api/history/Price%20WebSocket")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "history_disabled") {
		t.Fatalf("expected history_disabled, got %d %s", w.Code, w.Body.String())
	}
}

func TestServer_History(t *testing.T) {
	history := &fakeHistory{events: []domain.StatusEvent{
		domain.NewStatusEvent("API /api/channels", domain.StateError, domain.StateConnected),
		domain.NewStatusEvent("API /api/channels", domain.StateConnected, domain.StateError),
		domain.NewStatusEvent("API /api/channels", domain.StateConnecting, domain.StateConnected),
	}}
	s := newTestServer(t, history)

	w := doRequest(s, http.MethodGet, "/api/history/API%20/api/channels?limit=1000")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	if history.target != "API /api/channels" || history.limit != maxHistoryLimit {
		t.Fatalf("unexpected query target=%q limit=%d", history.target, history.limit)
	}

	var body HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Target != "API /api/channels" || body.Count != 3 || len(body.Events) != 3 {
		t.Fatalf("unexpected history %+v", body)
	}
	if body.Transitions[domain.StateConnected] != 2 || body.Transitions[domain.StateError] != 1 {
		t.Fatalf("unexpected transition counts %v", body.Transitions)
	}

	if w := doRequest(s, http.MethodGet, "/api/history/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown target, got %d", w.Code)
	}
	if w := doRequest(s, http.MethodGet, "/api/history/Price%20WebSocket?limit=zero"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	history.events = nil
	w = doRequest(s, http.MethodGet, "/api/history/Price%20WebSocket")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"events":[]`) {
		t.Fatalf("empty history must encode as a list, got %s", w.Body.String())
	}

	history.err = errors.New("db down")
	if w := doRequest(s, http.MethodGet, "/api/history/Price%20WebSocket"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	w := doRequest(newTestServer(t, nil), http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	w := doRequest(newTestServer(t, nil), http.MethodOptions, "/api/status")
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d", w.Code)
	}
}

func TestServer_NotFound(t *testing.T) {
	w := doRequest(newTestServer(t, nil), http.MethodGet, "/nope")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestHub_PushesSnapshots(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.GetRouter())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := 0; i < 3; i++ {
		var snap domain.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if len(snap.Statuses) != 2 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	}

	if n := s.hub.Clients(); n != 1 {
		t.Fatalf("expected 1 live client, got %d", n)
	}

	s.hub.Close()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Fatalf("expected going-away close, got %v", err)
			}
			break
		}
	}
}
