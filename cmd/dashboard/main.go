package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"OutLight/internal/config"
	"OutLight/internal/dashboard"
	"OutLight/internal/dependencies"
	"OutLight/internal/shared/constants"
	"OutLight/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("outlight-dashboard: %s", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("outlight-dashboard", pflag.ExitOnError)
	config.BindFlags(fs)
	fs.Parse(args)

	// Загрузка конфигурации
	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Setup(cfg.Logging.LoggerConfig())

	log.Info("Starting OutLight dashboard",
		"version", cfg.App.Version,
		"port", cfg.Dashboard.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependencies.NewContainer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	defer container.Close()

	srv := dashboard.New(&dashboard.Config{
		Port:         cfg.Dashboard.Port,
		Mode:         cfg.Dashboard.Mode,
		PushInterval: cfg.Dashboard.PushInterval,
	}, container.Aggregator, container.History, container.Metrics, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.RunMonitors(ctx) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Dashboard failed", "error", err)
		return err
	}
	log.Info("Dashboard stopped gracefully")
	return nil
}
