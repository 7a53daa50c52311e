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
	"OutLight/internal/console"
	"OutLight/internal/dependencies"
	"OutLight/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("outlight-console: %s", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("outlight-console", pflag.ExitOnError)
	config.BindFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// таблица идет в stdout, логи в stderr
	logCfg := cfg.Logging.LoggerConfig()
	logCfg.Output = os.Stderr
	log := logger.Setup(logCfg)

	log.Info("Starting OutLight console monitor", "version", cfg.App.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependencies.NewContainer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	defer container.Close()

	printer := console.NewPrinter(container.Aggregator, cfg.Console.Interval, os.Stdout, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.RunMonitors(ctx) })
	g.Go(func() error { return printer.Run(ctx) })

	if err := g.Wait(); err != nil {
		log.Error("Console monitor failed", "error", err)
		return err
	}
	log.Info("Console monitor stopped")
	return nil
}
