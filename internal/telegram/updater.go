package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/render"
	"OutLight/internal/shared/constants"
)

// SnapshotSource is satisfied by *status.Aggregator.
type SnapshotSource interface {
	Snapshot() domain.Snapshot
}

// LiveUpdater keeps one message per session current: the first render sends
// it, every later render edits it in place.
type LiveUpdater struct {
	client   Messenger
	source   SnapshotSource
	interval time.Duration
	logger   *slog.Logger

	onSent         func(ctx context.Context, s *Session)
	activeSessions func() int
	now            func() time.Time
}

func NewLiveUpdater(client Messenger, source SnapshotSource, interval time.Duration, logger *slog.Logger) *LiveUpdater {
	if interval <= 0 {
		interval = constants.TelegramTick
	}
	return &LiveUpdater{
		client:   client,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "live_updater"),
		now:      time.Now,
	}
}

func (u *LiveUpdater) Interval() time.Duration {
	return u.interval
}

// Run renders on every tick until ctx ends or the chat becomes unreachable,
// in which case ErrChatUnavailable is returned.
func (u *LiveUpdater) Run(ctx context.Context, s *Session) error {
	logger := u.logger.With("chat", s.Chat.Key(), "session", s.ID)
	logger.Info("Live session started", "restored", s.Restored)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	var pausedUntil time.Time
	for {
		if ctx.Err() != nil {
			logger.Info("Live session stopped")
			return nil
		}
		if err := u.step(ctx, s, &pausedUntil, logger); err != nil {
			logger.Warn("Live session ended", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			logger.Info("Live session stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// step performs one render. Only ErrChatUnavailable is returned; every other
// failure is logged and retried on the next tick.
func (u *LiveUpdater) step(ctx context.Context, s *Session, pausedUntil *time.Time, logger *slog.Logger) error {
	now := u.now()
	if now.Before(*pausedUntil) {
		return nil
	}
	sent := s.State() == SessionSent
	if sent && s.View() != ViewDashboard {
		return nil
	}

	text := u.dashboard(s)

	var err error
	if !sent {
		var id int
		id, err = u.client.Send(ctx, s.Chat, text, dashboardKeyboard())
		if err == nil {
			if markErr := s.MarkSent(id); markErr != nil {
				logger.Error("Session already sent", "error", markErr)
			}
			logger.Info("Live message sent", "message_id", id)
			if u.onSent != nil {
				u.onSent(ctx, s)
			}
		}
	} else {
		err = u.client.Edit(ctx, s.Chat, s.MessageID(), text, dashboardKeyboard())
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, ErrChatUnavailable):
		return err
	case errors.Is(err, ErrRateLimited):
		retry, _ := RetryAfter(err)
		*pausedUntil = now.Add(retry)
		logger.Warn("Rate limited, pausing updates", "retry_after", retry)
	case isNotModified(err):
		logger.Debug("Message not modified")
	case errors.Is(err, ErrMessageEditFailed):
		logger.Warn("Message edit failed", "error", err, "message_id", s.MessageID())
	default:
		logger.Warn("Telegram request failed", "error", err)
	}
	return nil
}

func (u *LiveUpdater) dashboard(s *Session) string {
	return render.Markdown(u.source.Snapshot(), u.header(s))
}

func (u *LiveUpdater) header(s *Session) render.Header {
	h := render.Header{
		ChatID:          s.Chat.Key(),
		Restored:        s.Restored,
		RefreshInterval: u.interval,
	}
	if u.activeSessions != nil {
		h.ActiveSessions = u.activeSessions()
	}
	return h
}
