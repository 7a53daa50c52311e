package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/metrics"
	"OutLight/internal/render"
	"OutLight/internal/shared/constants"
	"OutLight/internal/status"
	"OutLight/internal/storage"
)

const helpText = `*OutLight Monitor*

/start - live status message in this chat (also /monitor, /outlight)
/stop - stop live updates
/status - one-off status report
/clear - clear recent errors
/help - this message

Buttons under the live message:
🔄 Refresh - update now (once per 5s)
🚨 🌐 📡 Errors - all, API or WebSocket errors
📋 Logs - last 100 monitoring events
🧹 Clear - clear recent errors (once per 3s)
📥 Download - logs or errors as a file`

// chatQueueSize bounds the commands waiting for one chat's worker.
const chatQueueSize = 16

// Manager owns the live sessions, one per chat. Each session runs its own
// updater loop; loops never share message ids.
type Manager struct {
	client    Messenger
	updater   *LiveUpdater
	store     storage.SessionStore
	source    SnapshotSource
	incidents *status.IncidentLog
	activity  *status.ActivityLog
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time

	maxSessions int

	mu       sync.Mutex
	sessions map[domain.Chat]*running
	wg       sync.WaitGroup

	// storeMu orders saves of live sessions against deletes of stopped ones.
	storeMu sync.Mutex
}

type running struct {
	session *Session
	cancel  context.CancelFunc
}

func NewManager(client Messenger, updater *LiveUpdater, store storage.SessionStore, source SnapshotSource,
	incidents *status.IncidentLog, activity *status.ActivityLog, maxSessions int, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if activity == nil {
		activity = status.NewActivityLog(constants.ActivityLogLimit)
	}
	mgr := &Manager{
		client:      client,
		updater:     updater,
		store:       store,
		source:      source,
		incidents:   incidents,
		activity:    activity,
		metrics:     m,
		logger:      logger.With("component", "session_manager"),
		now:         time.Now,
		maxSessions: maxSessions,
		sessions:    make(map[domain.Chat]*running),
	}

	updater.activeSessions = mgr.Count
	updater.onSent = mgr.persistCurrent
	return mgr
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Session returns the active session of chat, if any.
func (m *Manager) Session(chat domain.Chat) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.sessions[chat]
	if !ok {
		return nil, false
	}
	return r.session, true
}

// Start begins a fresh live session in chat, replacing any running one.
func (m *Manager) Start(ctx context.Context, chat domain.Chat, userName string) (*Session, error) {
	return m.start(ctx, NewSession(chat, userName))
}

// start registers s before the loop it replaces has finished. The old loop is
// only cancelled: it may still be inside a Telegram call, and waiting for it
// here would hold up every other chat.
func (m *Manager) start(ctx context.Context, s *Session) (*Session, error) {
	runCtx, cancel := context.WithCancel(ctx)
	r := &running{session: s, cancel: cancel}

	m.mu.Lock()
	prev := m.sessions[s.Chat]
	active := len(m.sessions)
	if prev != nil {
		active--
	}
	if m.maxSessions > 0 && active >= m.maxSessions {
		m.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, m.maxSessions)
	}
	m.sessions[s.Chat] = r
	m.metrics.SetActiveSessions(len(m.sessions))
	m.wg.Add(1)
	m.mu.Unlock()

	if prev != nil {
		prev.cancel()
		m.logger.Info("Replaced live session", "chat", s.Chat.Key(), "old_session", prev.session.ID)
	}
	m.activity.Add(domain.ActivitySystem, "Telegram", fmt.Sprintf("live session started in chat %s", s.Chat.Key()))
	m.persist(ctx, s)

	go func() {
		defer m.wg.Done()

		err := m.updater.Run(runCtx, s)
		if errors.Is(err, ErrChatUnavailable) && m.remove(s.Chat, r) {
			m.forget(context.WithoutCancel(ctx), s.Chat)
		}
	}()

	return s, nil
}

// Stop ends the live session of chat and forgets it. The loop is cancelled,
// not awaited.
func (m *Manager) Stop(ctx context.Context, chat domain.Chat) bool {
	m.mu.Lock()
	r, ok := m.sessions[chat]
	m.mu.Unlock()
	if !ok || !m.remove(chat, r) {
		return false
	}

	r.cancel()
	m.forget(ctx, chat)
	m.activity.Add(domain.ActivitySystem, "Telegram", fmt.Sprintf("live session stopped in chat %s", chat.Key()))
	return true
}

// Restore purges stale sessions and resumes the rest. Resumed sessions send a
// new message rather than editing the old one.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	purged, err := m.store.PurgeOlderThan(ctx, constants.SessionMaxAge)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	if purged > 0 {
		m.logger.Info("Purged stale sessions", "count", purged)
	}

	records, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if _, err := m.start(ctx, RestoreSession(rec)); err != nil {
			m.logger.Warn("Failed to restore session", "chat", rec.Chat.Key(), "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}

// RunConfigured keeps one live session per configured chat until ctx ends.
func (m *Manager) RunConfigured(ctx context.Context, chats []domain.Chat) error {
	for _, chat := range chats {
		s := NewSession(chat, "")
		if rec, err := m.store.Load(ctx, chat); err == nil {
			s.Restored = true
			s.StartedAt = rec.StartedAt
		}
		if _, err := m.start(ctx, s); err != nil {
			return fmt.Errorf("chat %s: %w", chat.Key(), err)
		}
	}

	<-ctx.Done()
	m.Shutdown()
	return nil
}

// Serve handles commands until ctx ends or the channel closes. Each chat
// gets its own worker, so commands run in order within a chat and a slow
// Telegram call in one chat never delays another.
func (m *Manager) Serve(ctx context.Context, commands <-chan Command) error {
	queues := make(map[domain.Chat]chan Command)
	var workers sync.WaitGroup

	defer func() {
		for _, q := range queues {
			close(q)
		}
		workers.Wait()
		m.Shutdown()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-commands:
			if !ok {
				return nil
			}

			q, ok := queues[cmd.Chat]
			if !ok {
				q = make(chan Command, chatQueueSize)
				queues[cmd.Chat] = q
				workers.Add(1)
				go func() {
					defer workers.Done()
					for c := range q {
						m.HandleCommand(ctx, c)
					}
				}()
			}

			select {
			case q <- cmd:
			default:
				m.logger.Warn("Chat command queue full, dropping command", "chat", cmd.Chat.Key(), "command", cmd.Name)
				if cmd.IsCallback() {
					m.answer(ctx, cmd, "⏳ Busy, try again.", false)
				}
			}
		}
	}
}

func (m *Manager) HandleCommand(ctx context.Context, cmd Command) {
	if cmd.IsCallback() {
		m.HandleCallback(ctx, cmd)
		return
	}

	logger := m.logger.With("chat", cmd.Chat.Key(), "command", cmd.Name, "user", cmd.UserName)
	logger.Info("Command received")

	switch cmd.Name {
	case "start", "monitor", "outlight":
		if _, err := m.Start(ctx, cmd.Chat, cmd.UserName); err != nil {
			logger.Warn("Failed to start session", "error", err)
			m.reply(ctx, cmd.Chat, "⚠️ Too many active monitoring sessions, try again later.")
		}
	case "stop":
		if m.Stop(ctx, cmd.Chat) {
			m.reply(ctx, cmd.Chat, "⏹ Monitoring stopped.")
		} else {
			m.reply(ctx, cmd.Chat, "No active monitoring in this chat. Use /start.")
		}
	case "status":
		text := render.Markdown(m.source.Snapshot(), render.Header{ChatID: cmd.Chat.Key(), ActiveSessions: m.Count()})
		m.reply(ctx, cmd.Chat, text)
	case "clear":
		m.incidents.ClearRecent()
		m.activity.Add(domain.ActivitySystem, "Telegram", "recent errors cleared by "+cmd.UserName)
		m.reply(ctx, cmd.Chat, "🧹 Recent errors cleared.")
	default:
		m.reply(ctx, cmd.Chat, helpText)
	}
}

// Shutdown stops every loop and keeps the sessions stored for the next start.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for _, r := range m.sessions {
		r.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, r := range m.sessions {
		sessions = append(sessions, r.session)
	}
	m.sessions = make(map[domain.Chat]*running)
	m.metrics.SetActiveSessions(0)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range sessions {
		m.persist(ctx, s)
	}
	m.logger.Info("Session manager stopped", "saved", len(sessions))
}

// remove drops r if it is still the session of chat.
func (m *Manager) remove(chat domain.Chat, r *running) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[chat] != r {
		return false
	}
	delete(m.sessions, chat)
	m.metrics.SetActiveSessions(len(m.sessions))
	return true
}

// persistCurrent saves s unless it was replaced or stopped meanwhile, so a
// loop that is still winding down cannot bring its record back.
func (m *Manager) persistCurrent(ctx context.Context, s *Session) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	r, ok := m.sessions[s.Chat]
	current := ok && r.session == s
	m.mu.Unlock()

	if current {
		m.persist(ctx, s)
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	if err := m.store.Save(context.WithoutCancel(ctx), s.Record()); err != nil {
		m.logger.Warn("Failed to save session", "chat", s.Chat.Key(), "error", err)
	}
}

func (m *Manager) forget(ctx context.Context, chat domain.Chat) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	if err := m.store.Delete(ctx, chat); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		m.logger.Warn("Failed to delete session", "chat", chat.Key(), "error", err)
	}
}

func (m *Manager) reply(ctx context.Context, chat domain.Chat, text string) {
	if _, err := m.client.Send(ctx, chat, text, nil); err != nil {
		m.logger.Warn("Failed to reply", "chat", chat.Key(), "error", err)
	}
}
