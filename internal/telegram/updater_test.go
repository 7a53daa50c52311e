package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/status"
)

func newTestUpdater(client Messenger) *LiveUpdater {
	return NewLiveUpdater(client, status.NewAggregator(), 10*time.Millisecond, discardLogger())
}

func TestLiveUpdater_SendOnceThenEdit(t *testing.T) {
	fake := &fakeMessenger{}
	u := newTestUpdater(fake)
	s := NewSession(domain.Chat{ID: 100}, "alice")

	var paused time.Time
	for i := 0; i < 101; i++ {
		if err := u.step(context.Background(), s, &paused, u.logger); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	sends := fake.sendsTo(s.Chat)
	edits := fake.editsTo(s.Chat)
	if len(sends) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(sends))
	}
	if len(edits) != 100 {
		t.Fatalf("expected 100 edits, got %d", len(edits))
	}
	for i, e := range edits {
		if e.id != sends[0].id {
			t.Fatalf("edit %d targeted message %d, expected %d", i, e.id, sends[0].id)
		}
	}
	if s.State() != SessionSent || s.MessageID() != sends[0].id {
		t.Fatalf("session not marked sent: %s %d", s.State(), s.MessageID())
	}
}

func TestLiveUpdater_EditFailureDoesNotResend(t *testing.T) {
	fake := &fakeMessenger{}
	u := newTestUpdater(fake)
	s := NewSession(domain.Chat{ID: 1}, "")

	var paused time.Time
	u.step(context.Background(), s, &paused, u.logger)

	fake.setEditErr(fmt.Errorf("%w: message to edit not found", ErrMessageEditFailed))
	for i := 0; i < 5; i++ {
		if err := u.step(context.Background(), s, &paused, u.logger); err != nil {
			t.Fatalf("edit failure must not end the session: %v", err)
		}
	}

	if n := len(fake.sendsTo(s.Chat)); n != 1 {
		t.Fatalf("expected no replacement message, got %d sends", n)
	}
	if n := len(fake.editsTo(s.Chat)); n != 5 {
		t.Fatalf("expected edits to keep going, got %d", n)
	}
}

func TestLiveUpdater_RateLimitPauses(t *testing.T) {
	fake := &fakeMessenger{}
	u := newTestUpdater(fake)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return now }
	s := NewSession(domain.Chat{ID: 1}, "")

	var paused time.Time
	u.step(context.Background(), s, &paused, u.logger)

	fake.setEditErr(domain.WithKind(domain.ErrKindRateLimited, &RateLimitError{RetryAfter: 3 * time.Second}))
	u.step(context.Background(), s, &paused, u.logger)
	fake.setEditErr(nil)

	for i := 0; i < 2; i++ {
		now = now.Add(time.Second)
		u.step(context.Background(), s, &paused, u.logger)
	}
	if n := len(fake.editsTo(s.Chat)); n != 1 {
		t.Fatalf("expected edits skipped during pause, got %d", n)
	}

	now = now.Add(2 * time.Second)
	u.step(context.Background(), s, &paused, u.logger)
	if n := len(fake.editsTo(s.Chat)); n != 2 {
		t.Fatalf("expected edit after pause, got %d", n)
	}
}

func TestLiveUpdater_RunEndsWhenChatUnavailable(t *testing.T) {
	fake := &fakeMessenger{sendErr: fmt.Errorf("%w: bot was blocked by the user", ErrChatUnavailable)}
	u := newTestUpdater(fake)

	err := u.Run(context.Background(), NewSession(domain.Chat{ID: 1}, ""))
	if !errors.Is(err, ErrChatUnavailable) {
		t.Fatalf("expected ErrChatUnavailable, got %v", err)
	}
}

func TestLiveUpdater_RunStopsOnCancel(t *testing.T) {
	fake := &fakeMessenger{}
	u := newTestUpdater(fake)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := u.Run(ctx, NewSession(domain.Chat{ID: 1}, "")); err != nil {
		t.Fatalf("expected nil on cancel, got %v", err)
	}
	if len(fake.editsTo(domain.Chat{ID: 1})) == 0 {
		t.Fatalf("expected periodic edits before cancel")
	}
}

func TestLiveUpdater_HoldsOtherViews(t *testing.T) {
	fake := &fakeMessenger{}
	u := newTestUpdater(fake)
	s := NewSession(domain.Chat{ID: 1}, "")

	var paused time.Time
	u.step(context.Background(), s, &paused, u.logger)

	s.SetView(ViewLogs)
	for i := 0; i < 3; i++ {
		u.step(context.Background(), s, &paused, u.logger)
	}
	if n := len(fake.editsTo(s.Chat)); n != 0 {
		t.Fatalf("expected logs view left alone, got %d edits", n)
	}

	s.SetView(ViewDashboard)
	u.step(context.Background(), s, &paused, u.logger)
	edits := fake.editsTo(s.Chat)
	if len(edits) != 1 || len(edits[0].kb) == 0 {
		t.Fatalf("expected dashboard edit with keyboard, got %+v", edits)
	}
}
