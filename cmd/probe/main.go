package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"OutLight/internal/config"
	"OutLight/internal/dependencies"
	"OutLight/internal/domain"
	"OutLight/internal/render"
	"OutLight/pkg/logger"
)

// errUnhealthy makes the process exit with code 2: the check ran, but some
// target is not connected.
var errUnhealthy = errors.New("not every target is connected")

// Запускает каждую цель один раз и печатает JSON со статусами.
func main() {
	err := run(os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, errUnhealthy):
		os.Exit(2)
	default:
		log.Printf("outlight-probe: %s", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("outlight-probe", pflag.ExitOnError)
	config.BindFlags(fs)
	wait := fs.Duration("wait", 15*time.Second, "how long to observe streaming targets")
	text := fs.Bool("text", false, "print a plain-text table instead of JSON")
	fs.Parse(args)

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := cfg.Logging.LoggerConfig()
	logCfg.Output = os.Stderr
	log := logger.Setup(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependencies.NewContainer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create dependency container: %w", err)
	}
	defer container.Close()

	runCtx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := container.RunMonitors(runCtx); err != nil {
			log.Error("Monitors failed", "error", err)
		}
	}()

	waitSettled(runCtx, container)
	cancel()
	wg.Wait()

	snap := container.Aggregator.Snapshot()
	if *text {
		fmt.Print(render.PlainText(snap))
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
	}

	if !healthy(snap) {
		return errUnhealthy
	}
	return nil
}

// waitSettled returns once every target left its initial states or ctx ends.
func waitSettled(ctx context.Context, container *dependencies.Container) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		settled := true
		for _, st := range container.Aggregator.Snapshot().Statuses {
			if st.State == domain.StateDisconnected || st.State == domain.StateConnecting {
				settled = false
				break
			}
			// поток считаем проверенным после первого сообщения или ошибки
			if st.Kind.Streaming() && st.State == domain.StateConnected && st.MessageCount == 0 {
				settled = false
				break
			}
		}
		if settled {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func healthy(snap domain.Snapshot) bool {
	for _, st := range snap.Statuses {
		if st.State != domain.StateConnected {
			return false
		}
	}
	return true
}
