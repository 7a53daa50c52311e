package dashboard

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"OutLight/internal/metrics"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // дашборд только для чтения
	},
}

// Hub pushes a fresh snapshot to every live client on its own ticker.
type Hub struct {
	source   SnapshotSource
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	clients int
	done    chan struct{}
	once    sync.Once
}

func NewHub(source SnapshotSource, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Hub {
	if interval <= 0 {
		interval = time.Second
	}
	return &Hub{
		source:   source,
		interval: interval,
		metrics:  m,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}

func (h *Hub) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	h.track(1)
	defer h.track(-1)

	h.logger.Debug("websocket client connected", "ip", c.ClientIP())

	// клиент ничего не шлет, читаем только чтобы заметить закрытие
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(h.source.Snapshot()); err != nil {
			h.logger.Debug("websocket write error", "error", err)
			return
		}

		select {
		case <-gone:
			h.logger.Debug("websocket client disconnected")
			return
		case <-h.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
		}
	}
}

func (h *Hub) track(delta int) {
	h.mu.Lock()
	h.clients += delta
	n := h.clients
	h.mu.Unlock()
	h.metrics.SetLiveClients(n)
}
