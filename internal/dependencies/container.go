package dependencies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"OutLight/internal/config"
	"OutLight/internal/domain"
	"OutLight/internal/metrics"
	"OutLight/internal/monitor"
	"OutLight/internal/probe"
	"OutLight/internal/shared/constants"
	"OutLight/internal/status"
	"OutLight/internal/storage"
)

// Runner is a long-lived component driven by a context.
type Runner interface {
	Run(ctx context.Context) error
}

// Container контейнер зависимостей
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Metrics    *metrics.Metrics
	Aggregator *status.Aggregator
	Incidents  *status.IncidentLog
	Activity   *status.ActivityLog
	Recorder   *storage.Recorder

	// Storage. History и Publisher могут быть nil
	Sessions  storage.SessionStore
	History   storage.HistoryStore
	Publisher storage.EventPublisher

	Probes   *probe.Factory
	Targets  []domain.EndpointTarget
	Monitors []Runner

	// Database connections
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// NewContainer создает контейнер. Postgres и Redis необязательны: без них
// история не пишется, а сессии хранятся в памяти.
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	container := &Container{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(),
	}

	targets, err := cfg.Targets()
	if err != nil {
		return nil, fmt.Errorf("invalid targets: %w", err)
	}
	if len(targets) == 0 {
		return nil, errors.New("no targets configured")
	}
	container.Targets = targets

	container.initDatabase(ctx)
	container.initRedis()
	container.initStatus()

	if err := container.initMonitors(); err != nil {
		container.Close()
		return nil, err
	}

	log.Info("Dependency container initialized",
		"targets", len(targets),
		"history", container.History != nil,
		"redis", container.Redis != nil,
	)
	return container, nil
}

func (c *Container) initDatabase(ctx context.Context) {
	if !c.Config.Database.Enabled() {
		c.Logger.Info("Database not configured, status history disabled")
		return
	}

	db, err := storage.NewPostgres(ctx, &c.Config.Database, c.Logger)
	if err != nil {
		c.Logger.Warn("Database unavailable, status history disabled", "error", err)
		return
	}

	c.DB = db
	c.History = storage.NewHistoryStore(db)
}

func (c *Container) initRedis() {
	client, err := storage.NewRedisClient(&c.Config.Redis, c.Logger)
	if err != nil {
		c.Logger.Warn("Redis unavailable, using in-memory sessions", "error", err)
		c.Sessions = storage.NewMemorySessionStore()
		return
	}

	c.Redis = client
	c.Sessions = storage.NewRedisSessionStore(client)
	c.Publisher = storage.NewRedisPublisher(client)
}

func (c *Container) initStatus() {
	c.Recorder = storage.NewRecorder(c.Config.Monitor.EventBuffer, c.History, c.Publisher, c.Metrics, c.Logger)
	c.Incidents = status.NewIncidentLog().
		WithLogger(c.Logger.With("component", "incidents")).
		WithGrace(c.Config.Monitor.PendingGrace)

	sink := func(event domain.StatusEvent) {
		c.Recorder.Submit(event)
	}
	c.Activity = status.NewActivityLog(constants.ActivityLogLimit)
	c.Aggregator = status.NewAggregator(
		status.WithIncidentLog(c.Incidents),
		status.WithActivityLog(c.Activity),
		status.WithEventSink(sink),
	)

	c.Probes = probe.NewFactory(
		probe.NewHTTPProbe(c.Config.API.Timeout),
		probe.NewDNSProbe(c.Config.DNS.Server, c.Config.DNS.Timeout),
	)
}

func (c *Container) initMonitors() error {
	backoff := monitor.Backoff{Base: c.Config.Monitor.BackoffBase, Max: c.Config.Monitor.BackoffMax}
	wsDialer := monitor.NewWebSocketDialer(c.Config.Monitor.HandshakeTimeout)
	sioDialer := monitor.NewSocketIODialer(c.Config.Monitor.HandshakeTimeout)

	for _, target := range c.Targets {
		writer, err := c.Aggregator.Register(target)
		if err != nil {
			return fmt.Errorf("failed to register %q: %w", target.Name, err)
		}

		switch target.Kind {
		case domain.KindWebSocket:
			c.Monitors = append(c.Monitors,
				monitor.NewConnectionMonitor(target, wsDialer, writer, backoff, c.Metrics, c.Logger))
		case domain.KindSocketIO:
			c.Monitors = append(c.Monitors,
				monitor.NewConnectionMonitor(target, sioDialer, writer, backoff, c.Metrics, c.Logger))
		default:
			p, err := c.Probes.GetProbe(target.Kind)
			if err != nil {
				return fmt.Errorf("target %q: %w", target.Name, err)
			}
			c.Monitors = append(c.Monitors, monitor.NewChecker(target, p, writer, c.Metrics, c.Logger))
		}
	}
	return nil
}

// RunMonitors запускает все мониторы, рекордер и промоутер инцидентов и
// блокируется до отмены ctx.
func (c *Container) RunMonitors(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// рекордер получает свой контекст, чтобы дописать очередь после остановки мониторов
	recCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	recDone := make(chan error, 1)
	go func() { recDone <- c.Recorder.Run(recCtx) }()

	g.Go(func() error {
		c.Incidents.Run(ctx, constants.PendingCheckInterval)
		return nil
	})

	for _, m := range c.Monitors {
		g.Go(func() error {
			return m.Run(ctx)
		})
	}

	err := g.Wait()
	stopRecorder()
	if recErr := <-recDone; recErr != nil && err == nil {
		err = recErr
	}
	return err
}

// Close закрывает все соединения
func (c *Container) Close() error {
	var errs []error

	if c.DB != nil {
		c.DB.Close()
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	return errors.Join(errs...)
}
