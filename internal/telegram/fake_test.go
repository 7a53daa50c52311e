package telegram

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"OutLight/internal/domain"
)

type call struct {
	chat domain.Chat
	id   int
	text string
	kb   Keyboard
}

type answer struct {
	id    string
	text  string
	alert bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sends   []call
	edits   []call
	docs    []Document
	answers []answer
	sendErr error
	editErr error
}

func (f *fakeMessenger) Send(_ context.Context, chat domain.Chat, text string, kb Keyboard) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sends = append(f.sends, call{chat: chat, id: f.nextID, text: text, kb: kb})
	return f.nextID, nil
}

func (f *fakeMessenger) Edit(_ context.Context, chat domain.Chat, messageID int, text string, kb Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.edits = append(f.edits, call{chat: chat, id: messageID, text: text, kb: kb})
	return f.editErr
}

func (f *fakeMessenger) SendDocument(_ context.Context, _ domain.Chat, doc Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, answer{id: id, text: text, alert: alert})
	return nil
}

func (f *fakeMessenger) setEditErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editErr = err
}

func (f *fakeMessenger) sendsTo(chat domain.Chat) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.sends {
		if c.chat == chat {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeMessenger) editsTo(chat domain.Chat) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.edits {
		if c.chat == chat {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeMessenger) lastAnswer() answer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return answer{}
	}
	return f.answers[len(f.answers)-1]
}

func (f *fakeMessenger) documents() []Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Document(nil), f.docs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
