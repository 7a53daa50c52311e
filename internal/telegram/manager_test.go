package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/status"
	"OutLight/internal/storage"
)

func newTestManager(fake *fakeMessenger, store storage.SessionStore, maxSessions int) (*Manager, *status.Aggregator) {
	agg := status.NewAggregator()
	return newManagerWith(fake, agg, store, maxSessions), agg
}

func newManagerWith(client Messenger, agg *status.Aggregator, store storage.SessionStore, maxSessions int) *Manager {
	u := NewLiveUpdater(client, agg, 5*time.Millisecond, discardLogger())
	return NewManager(client, u, store, agg, agg.Incidents(), agg.Activity(), maxSessions, nil, discardLogger())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_IndependentChats(t *testing.T) {
	fake := &fakeMessenger{}
	mgr, _ := newTestManager(fake, storage.NewMemorySessionStore(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := domain.Chat{ID: 111}
	b := domain.Chat{ID: 222}
	mgr.HandleCommand(ctx, Command{Chat: a, Name: "start", UserName: "alice"})
	mgr.HandleCommand(ctx, Command{Chat: b, Name: "monitor", UserName: "bob"})

	waitFor(t, func() bool { return len(fake.editsTo(a)) >= 3 && len(fake.editsTo(b)) >= 3 })
	mgr.Shutdown()

	sendsA, sendsB := fake.sendsTo(a), fake.sendsTo(b)
	if len(sendsA) != 1 || len(sendsB) != 1 {
		t.Fatalf("expected one message per chat, got %d and %d", len(sendsA), len(sendsB))
	}
	if sendsA[0].id == sendsB[0].id {
		t.Fatalf("chats share message id %d", sendsA[0].id)
	}
	if !strings.Contains(sendsA[0].text, "`111`") || !strings.Contains(sendsB[0].text, "`222`") {
		t.Fatalf("each chat must see its own header")
	}

	for _, e := range fake.editsTo(a) {
		if e.id != sendsA[0].id {
			t.Fatalf("chat A edit targeted %d", e.id)
		}
	}
	for _, e := range fake.editsTo(b) {
		if e.id != sendsB[0].id {
			t.Fatalf("chat B edit targeted %d", e.id)
		}
	}
}

func TestManager_RestartReplacesLoop(t *testing.T) {
	fake := &fakeMessenger{}
	mgr, _ := newTestManager(fake, storage.NewMemorySessionStore(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer mgr.Shutdown()

	chat := domain.Chat{ID: 7}
	first, _ := mgr.Start(ctx, chat, "")
	waitFor(t, func() bool { return first.State() == SessionSent })

	second, err := mgr.Start(ctx, chat, "")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitFor(t, func() bool { return second.State() == SessionSent })

	if mgr.Count() != 1 {
		t.Fatalf("expected one session per chat, got %d", mgr.Count())
	}
	if first.MessageID() == second.MessageID() {
		t.Fatalf("restart must send a fresh message")
	}

	editsBefore := 0
	for _, e := range fake.editsTo(chat) {
		if e.id == first.MessageID() {
			editsBefore++
		}
	}
	time.Sleep(30 * time.Millisecond)
	editsAfter := 0
	for _, e := range fake.editsTo(chat) {
		if e.id == first.MessageID() {
			editsAfter++
		}
	}
	if editsAfter != editsBefore {
		t.Fatalf("replaced loop kept editing the old message")
	}
}

func TestManager_MaxSessions(t *testing.T) {
	fake := &fakeMessenger{}
	mgr, _ := newTestManager(fake, storage.NewMemorySessionStore(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer mgr.Shutdown()

	if _, err := mgr.Start(ctx, domain.Chat{ID: 1}, ""); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := mgr.Start(ctx, domain.Chat{ID: 2}, ""); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("expected ErrTooManySessions, got %v", err)
	}
	if _, err := mgr.Start(ctx, domain.Chat{ID: 1}, ""); err != nil {
		t.Fatalf("restart in same chat must be allowed: %v", err)
	}
}

func TestManager_StopForgetsSession(t *testing.T) {
	fake := &fakeMessenger{}
	store := storage.NewMemorySessionStore()
	mgr, _ := newTestManager(fake, store, 0)
	ctx := context.Background()

	chat := domain.Chat{ID: 9}
	mgr.HandleCommand(ctx, Command{Chat: chat, Name: "start"})
	waitFor(t, func() bool { return len(fake.sendsTo(chat)) == 1 })

	mgr.HandleCommand(ctx, Command{Chat: chat, Name: "stop"})

	if mgr.Count() != 0 {
		t.Fatalf("session still active")
	}
	if _, err := store.Load(ctx, chat); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Fatalf("stopped session must be deleted from store, got %v", err)
	}
	sends := fake.sendsTo(chat)
	if len(sends) != 2 || !strings.Contains(sends[1].text, "stopped") {
		t.Fatalf("expected stop confirmation, got %+v", sends)
	}
}

func TestManager_StatusAndClear(t *testing.T) {
	fake := &fakeMessenger{}
	mgr, agg := newTestManager(fake, storage.NewMemorySessionStore(), 0)
	ctx := context.Background()
	chat := domain.Chat{ID: 3}

	agg.Incidents().ReportError("API /api/channels", domain.ErrKindHTTPNon2xx, "unexpected status code: 500")

	mgr.HandleCommand(ctx, Command{Chat: chat, Name: "status"})
	mgr.HandleCommand(ctx, Command{Chat: chat, Name: "clear"})
	mgr.HandleCommand(ctx, Command{Chat: chat, Name: "help"})

	sends := fake.sendsTo(chat)
	if len(sends) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(sends))
	}
	if !strings.Contains(sends[0].text, "Recent Errors") {
		t.Fatalf("status reply missing errors section")
	}
	if len(agg.Incidents().Recent()) != 0 {
		t.Fatalf("clear did not clear recent errors")
	}
	if !strings.Contains(sends[2].text, "/start") {
		t.Fatalf("help reply missing commands")
	}
	if mgr.Count() != 0 {
		t.Fatalf("status must not start a live session")
	}
}

func TestManager_RestoreSendsFreshMessage(t *testing.T) {
	fake := &fakeMessenger{}
	store := storage.NewMemorySessionStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store.Save(ctx, storage.SessionRecord{ID: "stale", Chat: domain.Chat{ID: 1}, StartedAt: time.Now().Add(-72 * time.Hour), MessageID: 10})
	store.Save(ctx, storage.SessionRecord{ID: "live", Chat: domain.Chat{ID: 2, ThreadID: 5}, StartedAt: time.Now().Add(-time.Hour), MessageID: 20})

	mgr, _ := newTestManager(fake, store, 0)
	defer mgr.Shutdown()

	n, err := mgr.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 restored session, got %d", n)
	}

	chat := domain.Chat{ID: 2, ThreadID: 5}
	waitFor(t, func() bool { return len(fake.sendsTo(chat)) == 1 })

	s, ok := mgr.Session(chat)
	if !ok || !s.Restored {
		t.Fatalf("expected restored session")
	}
	if s.MessageID() == 20 {
		t.Fatalf("restored session must not reuse the old message id")
	}
	if !strings.Contains(fake.sendsTo(chat)[0].text, "Session restored") {
		t.Fatalf("restored header missing")
	}
}

func TestManager_ChatUnavailableEndsSession(t *testing.T) {
	fake := &fakeMessenger{}
	mgr, _ := newTestManager(fake, storage.NewMemorySessionStore(), 0)
	ctx := context.Background()
	defer mgr.Shutdown()

	chat := domain.Chat{ID: 4}
	mgr.Start(ctx, chat, "")
	waitFor(t, func() bool { return len(fake.sendsTo(chat)) == 1 })

	fake.setEditErr(errors.Join(ErrChatUnavailable, errors.New("bot was kicked")))
	waitFor(t, func() bool { return mgr.Count() == 0 })
}

func TestManager_RunConfigured(t *testing.T) {
	fake := &fakeMessenger{}
	store := storage.NewMemorySessionStore()
	mgr, _ := newTestManager(fake, store, 0)

	chats := []domain.Chat{{ID: -100}, {ID: -100, ThreadID: 7}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.RunConfigured(ctx, chats) }()

	waitFor(t, func() bool { return len(fake.editsTo(chats[0])) >= 2 && len(fake.editsTo(chats[1])) >= 2 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunConfigured: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunConfigured did not return")
	}

	if mgr.Count() != 0 {
		t.Fatalf("expected no running sessions after shutdown")
	}
	for _, chat := range chats {
		if len(fake.sendsTo(chat)) != 1 {
			t.Fatalf("chat %s: expected one send", chat.Key())
		}
		// сессии остаются в хранилище для следующего запуска
		rec, err := store.Load(context.Background(), chat)
		if err != nil {
			t.Fatalf("chat %s not persisted: %v", chat.Key(), err)
		}
		if rec.MessageID == 0 {
			t.Fatalf("chat %s persisted without message id", chat.Key())
		}
	}
}

// stallingMessenger holds edits to one chat until released, whatever the
// context says.
type stallingMessenger struct {
	*fakeMessenger
	chat    domain.Chat
	stalled chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallingMessenger) Edit(ctx context.Context, chat domain.Chat, messageID int, text string, kb Keyboard) error {
	if chat == s.chat {
		s.once.Do(func() { close(s.stalled) })
		<-s.release
	}
	return s.fakeMessenger.Edit(ctx, chat, messageID, text, kb)
}

func TestManager_SlowChatDoesNotBlockOthers(t *testing.T) {
	a, b := domain.Chat{ID: 1}, domain.Chat{ID: 2}
	fake := &fakeMessenger{}
	client := &stallingMessenger{fakeMessenger: fake, chat: a, stalled: make(chan struct{}), release: make(chan struct{})}
	mgr := newManagerWith(client, status.NewAggregator(), storage.NewMemorySessionStore(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	commands := make(chan Command)
	served := make(chan error, 1)
	go func() { served <- mgr.Serve(ctx, commands) }()

	commands <- Command{Chat: a, Name: "start"}
	select {
	case <-client.stalled:
	case <-time.After(2 * time.Second):
		t.Fatalf("chat A never reached an edit")
	}

	commands <- Command{Chat: a, Name: "start"}
	started := time.Now()
	commands <- Command{Chat: b, Name: "start"}

	waitFor(t, func() bool { return len(fake.sendsTo(b)) == 1 })
	if elapsed := time.Since(started); elapsed > 500*time.Millisecond {
		t.Fatalf("chat B waited %s for chat A", elapsed)
	}
	waitFor(t, func() bool { return len(fake.sendsTo(a)) == 2 })

	close(client.release)
	cancel()
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return")
	}
}

func TestManager_StopDoesNotWaitForLoop(t *testing.T) {
	chat := domain.Chat{ID: 5}
	fake := &fakeMessenger{}
	client := &stallingMessenger{fakeMessenger: fake, chat: chat, stalled: make(chan struct{}), release: make(chan struct{})}
	store := storage.NewMemorySessionStore()
	mgr := newManagerWith(client, status.NewAggregator(), store, 0)
	ctx := context.Background()

	mgr.HandleCommand(ctx, Command{Chat: chat, Name: "start"})
	<-client.stalled

	done := make(chan struct{})
	go func() {
		mgr.HandleCommand(ctx, Command{Chat: chat, Name: "stop"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("stop waited for the stalled loop")
	}

	close(client.release)
	mgr.Shutdown()
	if _, err := store.Load(ctx, chat); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Fatalf("stopped session came back in the store: %v", err)
	}
}
