package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

const (
	emojiConnected    = "🟢"
	emojiDisconnected = "🔴"
	emojiError        = "❌"
	emojiWarning      = "⚠️"
	emojiSuccess      = "✅"
	emojiWaiting      = "⏳"
	emojiAPI          = "🌐"
	emojiWebSocket    = "📡"
	emojiTime         = "⏰"
	emojiSpeed        = "⚡"
	emojiRobot        = "🤖"
)

const title = "OutLight.fun WebSocket & API Monitor"

const truncatedSuffix = "\n…"

// Header carries the per-recipient part of a rendering.
type Header struct {
	ChatID          string
	Restored        bool
	ActiveSessions  int
	RefreshInterval time.Duration
}

func StateEmoji(state domain.State) string {
	switch state {
	case domain.StateConnected:
		return emojiConnected
	case domain.StateDisconnected:
		return emojiDisconnected
	case domain.StateError:
		return emojiError
	case domain.StateConnecting:
		return emojiWaiting
	default:
		return emojiWarning
	}
}

// Markdown renders a snapshot for Telegram's legacy Markdown parse mode. The
// result never exceeds the Bot API message limit.
func Markdown(snap domain.Snapshot, h Header) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s *%s*\n", emojiRobot, title)
	fmt.Fprintf(&b, "%s %s | Uptime: %s\n", emojiTime, snap.TakenAt.Format("15:04:05"), FormatUptime(snap.Uptime()))
	if h.ChatID != "" {
		fmt.Fprintf(&b, "👤 Chat ID: `%s`\n", h.ChatID)
	}
	if h.Restored {
		b.WriteString("🔄 Session restored after bot restart\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s *WebSocket Connections:*\n", emojiWebSocket)
	for _, st := range snap.ByKind(domain.KindWebSocket, domain.KindSocketIO) {
		fmt.Fprintf(&b, "%s `%s`\n", StateEmoji(st.State), st.Name)
		fmt.Fprintf(&b, "   Status: *%s* | Messages: %d\n", strings.ToUpper(string(st.State)), st.MessageCount)
		fmt.Fprintf(&b, "   Last: %s\n", clock(st.LastCheckedAt))
		if st.LastError != nil && st.State == domain.StateError {
			fmt.Fprintf(&b, "   %s %s\n", emojiError, escapeMarkdown(shorten(st.LastError.Message, constants.MessagePreviewLen)))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s *API Endpoints:*\n", emojiAPI)
	for _, st := range snap.ByKind(domain.KindHTTP, domain.KindDNS) {
		fmt.Fprintf(&b, "%s `%s`\n", StateEmoji(st.State), st.Name)
		success := st.TotalChecks - st.TotalFailures
		fmt.Fprintf(&b, "   %s %d | %s %d", emojiSuccess, success, emojiError, st.TotalFailures)
		if st.LastLatencyMS > 0 {
			fmt.Fprintf(&b, " | %s %.0fms", emojiSpeed, st.LastLatencyMS)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "   Last: %s\n\n", clock(st.LastCheckedAt))
	}

	b.WriteString("📊 *Statistics:*\n")
	fmt.Fprintf(&b, "📨 Total Messages: %d\n", snap.TotalMessages())
	fmt.Fprintf(&b, "🌐 Total API Calls: %d\n", snap.TotalAPICalls())
	if h.ActiveSessions > 0 {
		fmt.Fprintf(&b, "👥 Active Users: %d\n", h.ActiveSessions)
	}
	if h.RefreshInterval > 0 {
		fmt.Fprintf(&b, "🔄 Auto-refresh: %s\n", h.RefreshInterval)
	}
	b.WriteString("\n")

	if len(snap.RecentErrors) > 0 {
		fmt.Fprintf(&b, "🔴 *Recent Errors (Last %d):*\n", constants.RecentErrorsLimit)
		for _, inc := range snap.RecentErrors {
			fmt.Fprintf(&b, "`%s` %s: %s\n", clock(inc.At), escapeMarkdown(inc.Source), escapeMarkdown(inc.Message))
		}
		b.WriteString("\n")
	}

	if len(snap.Pending) > 0 {
		fmt.Fprintf(&b, "%s *Pending Issues (recovering...):*\n", emojiWaiting)
		for _, inc := range snap.Pending {
			age := snap.TakenAt.Sub(inc.At).Seconds()
			fmt.Fprintf(&b, "`%s` %s: %s (%.0fs ago)\n", clock(inc.At), escapeMarkdown(inc.Source), escapeMarkdown(inc.Message), age)
		}
	}

	return Truncate(strings.TrimRight(b.String(), "\n"), constants.MaxMessageLength)
}

// PlainText renders a snapshot for terminals.
func PlainText(snap domain.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== %s ===\n", title)
	fmt.Fprintf(&b, "%s | uptime %s\n\n", snap.TakenAt.Format("2006-01-02 15:04:05"), FormatUptime(snap.Uptime()))

	for _, st := range snap.Statuses {
		fmt.Fprintf(&b, "%-28s %-10s %-13s", st.Name, st.Kind, strings.ToUpper(string(st.State)))
		if st.Kind.Streaming() {
			fmt.Fprintf(&b, " msgs=%d", st.MessageCount)
		} else {
			fmt.Fprintf(&b, " checks=%d failures=%d", st.TotalChecks, st.TotalFailures)
			if st.LastLatencyMS > 0 {
				fmt.Fprintf(&b, " latency=%.1fms", st.LastLatencyMS)
			}
		}
		if st.LastError != nil && st.State != domain.StateConnected {
			fmt.Fprintf(&b, " [%s] %s", st.LastError.Kind, shorten(st.LastError.Message, constants.MessagePreviewLen))
		}
		b.WriteString("\n")
	}

	if len(snap.RecentErrors) > 0 {
		b.WriteString("\nRecent errors:\n")
		for _, inc := range snap.RecentErrors {
			fmt.Fprintf(&b, "  %s %s: %s\n", clock(inc.At), inc.Source, inc.Message)
		}
	}

	if len(snap.Pending) > 0 {
		b.WriteString("\nPending:\n")
		for _, inc := range snap.Pending {
			fmt.Fprintf(&b, "  %s %s: %s (%.0fs ago)\n", clock(inc.At), inc.Source, inc.Message, snap.TakenAt.Sub(inc.At).Seconds())
		}
	}

	return b.String()
}

// Truncate cuts s to at most limit runes, marking the cut. The cut is made at a
// line break when there is one, so Markdown entities are not split.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	keep := limit - utf8.RuneCountInString(truncatedSuffix)
	if keep < 0 {
		keep = 0
	}
	cut := string([]rune(s)[:keep])
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + truncatedSuffix
}

// FormatUptime prints d as H:MM:SS, with a day prefix past 24h.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := (d - m*time.Minute) / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("15:04:05")
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
