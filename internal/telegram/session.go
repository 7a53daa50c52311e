package telegram

import (
	"errors"
	"sync"
	"time"

	"OutLight/internal/domain"
	"OutLight/internal/storage"
	"OutLight/pkg/uuidutil"
)

var ErrAlreadySent = errors.New("session message already sent")

type SessionState int

const (
	SessionUnsent SessionState = iota
	SessionSent
)

func (s SessionState) String() string {
	if s == SessionSent {
		return "sent"
	}
	return "unsent"
}

// View is what the live message currently shows. Only the dashboard is
// refreshed on every tick; the other views stay until a button is pressed.
type View string

const (
	ViewDashboard View = "dashboard"
	ViewAllErrors View = "all_errors"
	ViewAPIErrors View = "api_errors"
	ViewWSErrors  View = "ws_errors"
	ViewLogs      View = "logs"
	ViewHelp      View = "help"
)

// Session is one live status message in one chat. The message id is set once
// by MarkSent; every later render edits that message.
type Session struct {
	ID        string
	Chat      domain.Chat
	UserName  string
	StartedAt time.Time
	Restored  bool

	mu        sync.RWMutex
	state     SessionState
	messageID int
	view      View
	lastUsed  map[string]time.Time
}

func NewSession(chat domain.Chat, userName string) *Session {
	return &Session{
		ID:        uuidutil.New(),
		Chat:      chat,
		UserName:  userName,
		StartedAt: time.Now(),
	}
}

// RestoreSession rebuilds a session after a restart. The old message id is
// dropped so the first render sends a fresh message.
func RestoreSession(rec storage.SessionRecord) *Session {
	id := rec.ID
	if !uuidutil.IsValid(id) {
		id = uuidutil.New()
	}
	return &Session{
		ID:        id,
		Chat:      rec.Chat,
		UserName:  rec.UserName,
		StartedAt: rec.StartedAt,
		Restored:  true,
	}
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) MessageID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageID
}

func (s *Session) MarkSent(messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionSent {
		return ErrAlreadySent
	}
	s.state = SessionSent
	s.messageID = messageID
	return nil
}

func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view == "" {
		return ViewDashboard
	}
	return s.view
}

func (s *Session) SetView(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
}

// Throttle reports whether action may run at now. When it may not, the
// remaining wait is returned.
func (s *Session) Throttle(action string, gap time.Duration, now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastUsed[action]; ok {
		if wait := gap - now.Sub(last); wait > 0 {
			return wait, false
		}
	}
	if s.lastUsed == nil {
		s.lastUsed = make(map[string]time.Time)
	}
	s.lastUsed[action] = now
	return 0, true
}

func (s *Session) Record() storage.SessionRecord {
	return storage.SessionRecord{
		ID:        s.ID,
		Chat:      s.Chat,
		UserName:  s.UserName,
		StartedAt: s.StartedAt,
		MessageID: s.MessageID(),
	}
}
