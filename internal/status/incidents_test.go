package status

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"OutLight/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestLog() (*IncidentLog, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 10, 29, 12, 0, 0, 0, time.UTC)}
	l := NewIncidentLog()
	l.now = clock.now
	return l, clock
}

func TestIncidentLog_RecentKeepsLastFive(t *testing.T) {
	l, clock := newTestLog()

	for i := 0; i < 7; i++ {
		clock.t = clock.t.Add(time.Second)
		l.ReportError(fmt.Sprintf("API %d", i), domain.ErrKindNetworkTimeout, "timeout")
	}

	recent := l.Recent()
	if len(recent) != 5 {
		t.Fatalf("expected 5 recent errors, got %d", len(recent))
	}
	if recent[0].Source != "API 6" {
		t.Errorf("expected newest first, got %s", recent[0].Source)
	}
}

func TestIncidentLog_PendingResolved(t *testing.T) {
	l, clock := newTestLog()

	l.ReportPending("WebSocket Price", domain.ErrKindNetworkRefused, "connection refused")
	clock.t = clock.t.Add(7 * time.Second)

	downtime, ok := l.Resolve("WebSocket Price")
	if !ok {
		t.Fatal("expected pending incident to resolve")
	}
	if downtime != 7*time.Second {
		t.Errorf("expected 7s downtime, got %s", downtime)
	}
	if len(l.Pending()) != 0 {
		t.Error("expected no pending incidents")
	}
	if len(l.Recent()) != 0 {
		t.Error("resolved incident must not reach recent errors")
	}

	hist := l.History()
	if len(hist) != 1 || hist[0].Status != domain.IncidentResolved {
		t.Fatalf("expected resolved history entry, got %+v", hist)
	}
}

func TestIncidentLog_PromoteAfterGrace(t *testing.T) {
	l, clock := newTestLog()

	l.ReportPending("WebSocket Sauron", domain.ErrKindNetworkTimeout, "i/o timeout")
	clock.t = clock.t.Add(10 * time.Second)
	// repeated failures keep the first timestamp
	l.ReportPending("WebSocket Sauron", domain.ErrKindNetworkTimeout, "i/o timeout")

	if got := l.PromoteExpired(); len(got) != 0 {
		t.Fatalf("nothing should be promoted within grace, got %+v", got)
	}

	clock.t = clock.t.Add(11 * time.Second)
	promoted := l.PromoteExpired()
	if len(promoted) != 1 {
		t.Fatalf("expected 1 promoted incident, got %d", len(promoted))
	}
	if !strings.Contains(promoted[0].Message, "connection failed for >20s") {
		t.Errorf("unexpected message %q", promoted[0].Message)
	}

	if len(l.Pending()) != 0 {
		t.Error("promoted incident must leave pending list")
	}
	if recent := l.Recent(); len(recent) != 1 || recent[0].Status != domain.IncidentConfirmed {
		t.Fatalf("expected confirmed recent error, got %+v", recent)
	}
}

func TestIncidentLog_TruncatesMessages(t *testing.T) {
	l, _ := newTestLog()
	l.ReportError("API", domain.ErrKindUnknown, strings.Repeat("x", 300))

	if got := len(l.Recent()[0].Message); got != 100 {
		t.Fatalf("expected message truncated to 100, got %d", got)
	}
}

func TestIncidentLog_ClearRecent(t *testing.T) {
	l, _ := newTestLog()
	l.ReportError("API", domain.ErrKindUnknown, "boom")
	l.ClearRecent()

	if len(l.Recent()) != 0 {
		t.Fatal("expected recent errors to be cleared")
	}
}

func TestIncidentLog_WithGrace(t *testing.T) {
	l, clock := newTestLog()
	l.WithGrace(3 * time.Second).WithGrace(0)

	l.ReportPending("API /api/channels", domain.ErrKindNetworkRefused, "connection refused")
	clock.t = clock.t.Add(4 * time.Second)

	if got := l.PromoteExpired(); len(got) != 1 {
		t.Fatalf("expected promotion after custom grace, got %+v", got)
	}
}
