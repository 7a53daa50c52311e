package dashboard

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"OutLight/internal/domain"
	"OutLight/internal/metrics"
	"OutLight/internal/storage"
	"OutLight/pkg/uuidutil"
)

//go:embed static/index.html
var indexHTML []byte

type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

type Server struct {
	router     *gin.Engine
	config     *Config
	source     SnapshotSource
	history    storage.HistoryStore
	metrics    *metrics.Metrics
	hub        *Hub
	logger     *slog.Logger
	httpServer *http.Server
}

type Config struct {
	Port         int
	Mode         string
	PushInterval time.Duration
}

// New собирает роутер. history может быть nil, тогда /api/history отвечает 404.
func New(config *Config, source SnapshotSource, history storage.HistoryStore, m *metrics.Metrics, logger *slog.Logger) *Server {
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	logger = logger.With("component", "dashboard")
	server := &Server{
		router:  gin.New(),
		config:  config,
		source:  source,
		history: history,
		metrics: m,
		hub:     NewHub(source, config.PushInterval, m, logger),
		logger:  logger,
	}

	server.setupMiddlewares()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddlewares() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.requestIDMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.index)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		// имена целей содержат "/", поэтому catch-all
		api.GET("/history/*name", s.getHistory)
	}

	s.router.GET("/ws", s.hub.Serve)

	s.router.NoRoute(s.notFoundHandler)
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "outlight-dashboard",
		"clients":   s.hub.Clients(),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) notFoundHandler(c *gin.Context) {
	abortWithError(c, http.StatusNotFound, "not_found", "Endpoint not found: "+c.Request.URL.Path)
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		statusCode := c.Writer.Status()
		if query != "" {
			path = path + "?" + query
		}

		level := slog.LevelDebug
		if statusCode >= 400 {
			level = slog.LevelWarn
		}
		if statusCode >= 500 {
			level = slog.LevelError
		}

		s.logger.Log(c.Request.Context(), level, "HTTP request",
			"status", statusCode,
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"request_id", c.GetString("request_id"),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = "req-" + uuidutil.Short()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// Start блокируется до остановки сервера
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("Starting HTTP server",
		"port", s.config.Port,
		"mode", s.config.Mode,
		"address", addr,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown закрывает live-клиентов и останавливает HTTP сервер
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	s.hub.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	s.logger.Info("Server shutdown completed")
	return nil
}

// GetRouter возвращает router для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
