package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/render"
)

type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// Printer periodically writes a plain-text status table.
type Printer struct {
	source   SnapshotSource
	interval time.Duration
	out      io.Writer
	logger   *slog.Logger
}

func NewPrinter(source SnapshotSource, interval time.Duration, out io.Writer, logger *slog.Logger) *Printer {
	return &Printer{
		source:   source,
		interval: interval,
		out:      out,
		logger:   logger.With("component", "console"),
	}
}

// Run prints immediately and then on every tick until ctx ends.
func (p *Printer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Console printer started", "interval", p.interval)

	for {
		if err := p.PrintOnce(); err != nil {
			p.logger.Warn("Failed to print status", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Console printer stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Printer) PrintOnce() error {
	_, err := fmt.Fprintln(p.out, render.PlainText(p.source.Snapshot()))
	return err
}
