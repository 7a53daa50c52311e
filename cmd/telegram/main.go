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
	"OutLight/internal/dependencies"
	"OutLight/internal/telegram"
	"OutLight/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("outlight-telegram: %s", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so the deferred cleanup always happens.
func run(args []string) error {
	fs := pflag.NewFlagSet("outlight-telegram", pflag.ExitOnError)
	config.BindFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// токен и чаты проверяем до запуска мониторов
	if err := cfg.ValidateTelegram(); err != nil {
		return fmt.Errorf("invalid telegram config: %w", err)
	}
	chats, err := cfg.Telegram.Chats()
	if err != nil {
		return fmt.Errorf("invalid CHAT_ID: %w", err)
	}

	log := logger.Setup(cfg.Logging.LoggerConfig())

	log.Info("Starting OutLight Telegram monitor",
		"version", cfg.App.Version,
		"interactive", cfg.Telegram.Interactive,
		"chats", len(chats),
		"update_interval", cfg.Telegram.Interval(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependencies.NewContainer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	defer container.Close()

	client, err := telegram.NewBotClient(cfg.Telegram.BotToken, "", container.Metrics, log)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	updater := telegram.NewLiveUpdater(client, container.Aggregator, cfg.Telegram.Interval(), log)
	manager := telegram.NewManager(client, updater, container.Sessions, container.Aggregator,
		container.Incidents, container.Activity, cfg.Telegram.MaxSessions, container.Metrics, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.RunMonitors(ctx) })

	if cfg.Telegram.Interactive {
		restored, err := manager.Restore(ctx)
		if err != nil {
			log.Warn("Failed to restore sessions", "error", err)
		}
		log.Info("Waiting for /start commands", "bot", client.UserName(), "restored", restored)

		g.Go(func() error { return manager.Serve(ctx, client.Commands(ctx)) })
	} else {
		// в заданных чатах работают только кнопки
		g.Go(func() error { return manager.RunConfigured(ctx, chats) })
		g.Go(func() error { return manager.Serve(ctx, telegram.Callbacks(ctx, client.Commands(ctx))) })
	}

	if err := g.Wait(); err != nil {
		log.Error("Telegram monitor failed", "error", err)
		return err
	}
	log.Info("Telegram monitor stopped")
	return nil
}
