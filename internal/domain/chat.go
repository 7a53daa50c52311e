package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Chat addresses a Telegram chat, optionally a forum topic inside it.
type Chat struct {
	ID       int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
}

// Key is the canonical "chat[_thread]" form used in config and storage keys.
func (c Chat) Key() string {
	if c.ThreadID != 0 {
		return fmt.Sprintf("%d_%d", c.ID, c.ThreadID)
	}
	return strconv.FormatInt(c.ID, 10)
}

func (c Chat) String() string {
	return c.Key()
}

// ParseChat accepts "chat" or "chat_thread".
func ParseChat(s string) (Chat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Chat{}, fmt.Errorf("empty chat id")
	}

	chatPart, threadPart, hasThread := strings.Cut(s, "_")

	id, err := strconv.ParseInt(chatPart, 10, 64)
	if err != nil || id == 0 {
		return Chat{}, fmt.Errorf("invalid chat id %q", s)
	}

	chat := Chat{ID: id}
	if hasThread {
		thread, err := strconv.Atoi(threadPart)
		if err != nil || thread <= 0 {
			return Chat{}, fmt.Errorf("invalid thread id in %q", s)
		}
		chat.ThreadID = thread
	}
	return chat, nil
}
