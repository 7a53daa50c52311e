package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/shared/constants"
)

const (
	viewHistoryLimit = 10
	viewLogsLimit    = 20
)

// ErrorClass selects which incidents an errors view shows.
type ErrorClass int

const (
	AllErrors ErrorClass = iota
	APIErrors
	StreamErrors
)

func (c ErrorClass) title() string {
	switch c {
	case APIErrors:
		return emojiAPI + " *API Errors*"
	case StreamErrors:
		return emojiWebSocket + " *WebSocket Errors*"
	default:
		return "🚨 *Errors Overview*"
	}
}

// classifier resolves incident sources to their target kind. Sources that are
// not monitored targets count as API errors.
type classifier map[string]domain.TargetKind

func newClassifier(snap domain.Snapshot) classifier {
	c := make(classifier, len(snap.Statuses))
	for _, st := range snap.Statuses {
		c[st.Name] = st.Kind
	}
	return c
}

func (c classifier) streaming(source string) bool {
	return c[source].Streaming()
}

func (c classifier) keep(class ErrorClass, inc domain.Incident) bool {
	switch class {
	case APIErrors:
		return !c.streaming(inc.Source)
	case StreamErrors:
		return c.streaming(inc.Source)
	default:
		return true
	}
}

func (c classifier) filter(class ErrorClass, incidents []domain.Incident) []domain.Incident {
	out := make([]domain.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if c.keep(class, inc) {
			out = append(out, inc)
		}
	}
	return out
}

// Errors renders the errors view: recent confirmed errors, pending ones and
// the connection history, limited to class.
func Errors(snap domain.Snapshot, history []domain.Incident, class ErrorClass) string {
	c := newClassifier(snap)
	recent := c.filter(class, snap.RecentErrors)
	pending := c.filter(class, snap.Pending)
	past := c.filter(class, history)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", class.title())
	fmt.Fprintf(&b, "%s %s\n\n", emojiTime, snap.TakenAt.Format("15:04:05"))

	if class == AllErrors {
		api := int64(0)
		for _, st := range snap.Statuses {
			if !st.Kind.Streaming() {
				api += st.TotalFailures
			}
		}
		stream := len(c.filter(StreamErrors, past))
		b.WriteString("📊 *Error Summary:*\n")
		fmt.Fprintf(&b, "%s API failures: %d\n", emojiAPI, api)
		fmt.Fprintf(&b, "%s WebSocket disconnects: %d\n", emojiWebSocket, stream)
		fmt.Fprintf(&b, "%s Pending: %d\n\n", emojiWaiting, len(pending))
	}

	if len(recent) == 0 && len(pending) == 0 && len(past) == 0 {
		fmt.Fprintf(&b, "%s *No errors of this type!*", emojiSuccess)
		return b.String()
	}

	if len(recent) > 0 {
		fmt.Fprintf(&b, "🔴 *Recent Errors (%d):*\n", len(recent))
		for _, inc := range recent {
			fmt.Fprintf(&b, "• `%s` %s: %s\n", clock(inc.At), escapeMarkdown(inc.Source), escapeMarkdown(inc.Message))
		}
		b.WriteString("\n")
	}

	if len(pending) > 0 {
		fmt.Fprintf(&b, "%s *Pending (%d):*\n", emojiWaiting, len(pending))
		for _, inc := range pending {
			fmt.Fprintf(&b, "• `%s` %s: %s (%.0fs ago)\n", clock(inc.At), escapeMarkdown(inc.Source),
				escapeMarkdown(inc.Message), snap.TakenAt.Sub(inc.At).Seconds())
		}
		b.WriteString("\n")
	}

	if len(past) > 0 {
		fmt.Fprintf(&b, "📋 *Connection Issues History (%d):*\n", len(past))
		if len(past) > viewHistoryLimit {
			past = past[len(past)-viewHistoryLimit:]
		}
		for i := len(past) - 1; i >= 0; i-- {
			inc := past[i]
			fmt.Fprintf(&b, "%s `%s` %s: %s\n", incidentEmoji(inc.Status), clock(inc.At),
				escapeMarkdown(inc.Source), escapeMarkdown(shorten(inc.Message, constants.MessagePreviewLen)))
		}
	}

	return Truncate(strings.TrimRight(b.String(), "\n"), constants.MaxMessageLength)
}

func incidentEmoji(s domain.IncidentStatus) string {
	switch s {
	case domain.IncidentResolved:
		return emojiSuccess
	case domain.IncidentConfirmed:
		return emojiError
	default:
		return emojiWaiting
	}
}

func activityEmoji(level domain.ActivityLevel) string {
	switch level {
	case domain.ActivitySuccess:
		return emojiSuccess
	case domain.ActivityError:
		return emojiError
	case domain.ActivityWarning:
		return emojiWarning
	case domain.ActivityConnecting:
		return "🔄"
	case domain.ActivitySystem:
		return "⚙️"
	default:
		return "ℹ️"
	}
}

// Logs renders the activity view: counts per level and the latest entries,
// newest first.
func Logs(entries []domain.ActivityEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Activity Log* (%d entries)\n\n", len(entries))

	if len(entries) == 0 {
		b.WriteString("No activity recorded yet.")
		return b.String()
	}

	counts := make(map[domain.ActivityLevel]int)
	for _, e := range entries {
		counts[e.Level]++
	}
	levels := make([]string, 0, len(counts))
	for level := range counts {
		levels = append(levels, string(level))
	}
	sort.Strings(levels)
	for _, level := range levels {
		l := domain.ActivityLevel(level)
		fmt.Fprintf(&b, "%s %s: %d\n", activityEmoji(l), level, counts[l])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "🕒 *Latest %d:*\n", min(len(entries), viewLogsLimit))
	for i, n := len(entries)-1, 0; i >= 0 && n < viewLogsLimit; i, n = i-1, n+1 {
		e := entries[i]
		fmt.Fprintf(&b, "`%s` %s *%s*\n%s\n", clock(e.At), activityEmoji(e.Level), escapeMarkdown(e.Source),
			escapeMarkdown(shorten(e.Message, 60)))
	}

	return Truncate(strings.TrimRight(b.String(), "\n"), constants.MaxMessageLength)
}

// LogsExport is the plain-text activity file, oldest first.
func LogsExport(entries []domain.ActivityEntry, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - activity log\n", title)
	fmt.Fprintf(&b, "Generated: %s\n", now.Format(time.DateTime))
	fmt.Fprintf(&b, "Entries: %d\n\n", len(entries))

	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %-10s %s: %s\n", e.At.Format(time.DateTime), e.Level, e.Source, e.Message)
	}
	return b.String()
}

// ErrorsExport is the plain-text error report: current target states, recent
// and pending errors, then the full history.
func ErrorsExport(snap domain.Snapshot, history []domain.Incident, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - error report\n", title)
	fmt.Fprintf(&b, "Generated: %s\n", now.Format(time.DateTime))
	fmt.Fprintf(&b, "Uptime: %s\n\n", FormatUptime(snap.Uptime()))

	b.WriteString("Targets:\n")
	for _, st := range snap.Statuses {
		fmt.Fprintf(&b, "  %-28s %-10s %-13s checks=%d failures=%d\n", st.Name, st.Kind,
			strings.ToUpper(string(st.State)), st.TotalChecks, st.TotalFailures)
		if st.LastError != nil {
			fmt.Fprintf(&b, "    last error [%s] %s at %s\n", st.LastError.Kind, st.LastError.Message,
				st.LastError.At.Format(time.DateTime))
		}
	}

	writeIncidents(&b, "Recent errors", snap.RecentErrors)
	writeIncidents(&b, "Pending errors", snap.Pending)
	writeIncidents(&b, "History", history)
	return b.String()
}

func writeIncidents(b *strings.Builder, heading string, incidents []domain.Incident) {
	fmt.Fprintf(b, "\n%s (%d):\n", heading, len(incidents))
	for _, inc := range incidents {
		fmt.Fprintf(b, "  [%s] %-9s %s (%s): %s\n", inc.At.Format(time.DateTime), inc.Status, inc.Source, inc.Kind, inc.Message)
	}
}
