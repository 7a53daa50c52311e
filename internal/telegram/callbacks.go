package telegram

import (
	"context"
	"errors"
	"fmt"

	"OutLight/internal/domain"
	"OutLight/internal/render"
	"OutLight/internal/shared/constants"
)

const exportTimeLayout = "20060102_150405"

// HandleCallback serves a button press on a live message. Every press is
// answered, even when the action is refused.
func (m *Manager) HandleCallback(ctx context.Context, cb Command) {
	logger := m.logger.With("chat", cb.Chat.Key(), "action", cb.Name, "user", cb.UserName)
	logger.Debug("Button pressed")

	s, ok := m.Session(cb.Chat)
	if !ok {
		m.answer(ctx, cb, "❌ No active monitoring in this chat. Use /start.", true)
		return
	}
	now := m.now()

	switch cb.Name {
	case ActionRefresh:
		if wait, ok := s.Throttle(ActionRefresh, constants.RefreshThrottle, now); !ok {
			m.answer(ctx, cb, fmt.Sprintf("⏳ Please wait %.1fs before refreshing again", wait.Seconds()), true)
			return
		}
		m.showDashboard(ctx, cb, s)
		m.answer(ctx, cb, "🔄 Status refreshed!", false)

	case ActionBack:
		m.showDashboard(ctx, cb, s)
		m.answer(ctx, cb, "", false)

	case ActionClear:
		if wait, ok := s.Throttle(ActionClear, constants.ClearThrottle, now); !ok {
			m.answer(ctx, cb, fmt.Sprintf("⏳ Please wait %.1fs before clearing again", wait.Seconds()), true)
			return
		}
		m.incidents.ClearRecent()
		m.activity.Add(domain.ActivitySystem, "Telegram", "recent errors cleared by "+cb.UserName)
		m.showDashboard(ctx, cb, s)
		m.answer(ctx, cb, "✅ Error history cleared!", false)

	case ActionAllErrors, ActionAPIErrors, ActionWSErrors:
		view, class := errorView(cb.Name)
		s.SetView(view)
		m.edit(ctx, cb, s, render.Errors(m.source.Snapshot(), m.incidents.History(), class), errorsKeyboard(view))
		m.answer(ctx, cb, "", false)

	case ActionLogs:
		s.SetView(ViewLogs)
		m.edit(ctx, cb, s, render.Logs(m.activity.Entries()), logsKeyboard())
		m.answer(ctx, cb, "", false)

	case ActionHelp:
		s.SetView(ViewHelp)
		m.edit(ctx, cb, s, helpText, backKeyboard())
		m.answer(ctx, cb, "", false)

	case ActionDownloadLogs:
		doc := Document{
			Name:    fmt.Sprintf("outlight_logs_%s.txt", now.Format(exportTimeLayout)),
			Data:    []byte(render.LogsExport(m.activity.Entries(), now)),
			Caption: fmt.Sprintf("📋 Activity log, %d entries", m.activity.Len()),
		}
		m.sendDocument(ctx, cb, doc, "📥 Logs file sent!")

	case ActionDownloadErrors:
		snap := m.source.Snapshot()
		doc := Document{
			Name:    fmt.Sprintf("outlight_errors_%s.txt", now.Format(exportTimeLayout)),
			Data:    []byte(render.ErrorsExport(snap, m.incidents.History(), now)),
			Caption: fmt.Sprintf("🚨 Error report, %d recent, %d pending", len(snap.RecentErrors), len(snap.Pending)),
		}
		m.sendDocument(ctx, cb, doc, "📥 Errors file sent!")

	default:
		logger.Warn("Unknown button")
		m.answer(ctx, cb, "Unknown action", false)
	}
}

func errorView(action string) (View, render.ErrorClass) {
	switch action {
	case ActionAPIErrors:
		return ViewAPIErrors, render.APIErrors
	case ActionWSErrors:
		return ViewWSErrors, render.StreamErrors
	default:
		return ViewAllErrors, render.AllErrors
	}
}

func (m *Manager) showDashboard(ctx context.Context, cb Command, s *Session) {
	s.SetView(ViewDashboard)
	m.edit(ctx, cb, s, m.updater.dashboard(s), dashboardKeyboard())
}

// edit rewrites the message the button sits on, falling back to the live
// message of the session.
func (m *Manager) edit(ctx context.Context, cb Command, s *Session, text string, kb Keyboard) {
	id := cb.MessageID
	if id == 0 {
		id = s.MessageID()
	}
	if id == 0 {
		return
	}

	err := m.client.Edit(ctx, cb.Chat, id, text, kb)
	switch {
	case err == nil, isNotModified(err):
	default:
		m.logger.Warn("Failed to update view", "chat", cb.Chat.Key(), "action", cb.Name, "error", err)
	}
}

// sendDocument posts the file next to the live message; the live message
// keeps its id and stays the one that is edited.
func (m *Manager) sendDocument(ctx context.Context, cb Command, doc Document, sent string) {
	if err := m.client.SendDocument(ctx, cb.Chat, doc); err != nil {
		m.logger.Warn("Failed to send document", "chat", cb.Chat.Key(), "file", doc.Name, "error", err)
		text := "❌ Failed to send file"
		if errors.Is(err, ErrRateLimited) {
			text = "⏳ Telegram rate limit, try again later"
		}
		m.answer(ctx, cb, text, true)
		return
	}
	m.answer(ctx, cb, sent, false)
}

func (m *Manager) answer(ctx context.Context, cb Command, text string, alert bool) {
	if err := m.client.AnswerCallback(ctx, cb.CallbackID, text, alert); err != nil {
		m.logger.Debug("Failed to answer callback", "chat", cb.Chat.Key(), "error", err)
	}
}
