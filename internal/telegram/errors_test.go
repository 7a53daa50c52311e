package telegram

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"OutLight/internal/domain"
)

func apiError(code int, msg string, retry int) error {
	return &tgbotapi.Error{Code: code, Message: msg, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: retry}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     domain.ErrorKind
	}{
		{"flood", apiError(429, "Too Many Requests: retry after 7", 7), ErrRateLimited, domain.ErrKindRateLimited},
		{"not modified", apiError(400, "Bad Request: message is not modified: specified new message content is exactly the same", 0), ErrMessageEditFailed, domain.ErrKindMessageEditFailed},
		{"not found", apiError(400, "Bad Request: message to edit not found", 0), ErrMessageEditFailed, domain.ErrKindMessageEditFailed},
		{"cant edit", apiError(400, "Bad Request: message can't be edited", 0), ErrMessageEditFailed, domain.ErrKindMessageEditFailed},
		{"blocked", apiError(403, "Forbidden: bot was blocked by the user", 0), ErrChatUnavailable, ""},
		{"chat not found", apiError(400, "Bad Request: chat not found", 0), ErrChatUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, got)
			}
			if tt.kind != "" && domain.ClassifyError(got) != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, domain.ClassifyError(got))
			}
		})
	}
}

func TestClassify_RetryAfter(t *testing.T) {
	err := classify(apiError(429, "Too Many Requests: retry after 7", 7))

	retry, ok := RetryAfter(err)
	if !ok || retry != 7*time.Second {
		t.Fatalf("expected 7s retry, got %s ok=%v", retry, ok)
	}
}

func TestClassify_PassesThroughTransportErrors(t *testing.T) {
	transport := errors.New("dial tcp: connection refused")
	if got := classify(transport); got != transport {
		t.Fatalf("transport error must be returned unchanged, got %v", got)
	}
	if classify(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestIsNotModified(t *testing.T) {
	if !isNotModified(classify(apiError(400, "Bad Request: message is not modified", 0))) {
		t.Fatalf("expected not modified")
	}
	if isNotModified(classify(apiError(400, "Bad Request: message to edit not found", 0))) {
		t.Fatalf("not found is not 'not modified'")
	}
}
