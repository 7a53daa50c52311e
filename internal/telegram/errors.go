package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"OutLight/internal/domain"
)

var (
	ErrRateLimited       = errors.New("telegram: rate limited")
	ErrMessageEditFailed = errors.New("telegram: message edit failed")
	ErrChatUnavailable   = errors.New("telegram: chat unavailable")
	ErrTooManySessions   = errors.New("telegram: session limit reached")
)

// RateLimitError carries the server-requested pause.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s: %s", ErrRateLimited, e.RetryAfter, e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// RetryAfter reports the pause requested by a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

var editFailures = []string{
	"message is not modified",
	"message to edit not found",
	"message can't be edited",
}

var chatGone = []string{
	"chat not found",
	"bot was blocked",
	"bot was kicked",
	"user is deactivated",
	"have no rights to send",
}

// classify maps Bot API failures onto the package sentinels. Transport errors
// are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	msg := strings.ToLower(apiErr.Message)

	if apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0 {
		retry := time.Duration(apiErr.RetryAfter) * time.Second
		if retry <= 0 {
			retry = time.Second
		}
		return domain.WithKind(domain.ErrKindRateLimited, &RateLimitError{RetryAfter: retry, Message: apiErr.Message})
	}

	for _, s := range editFailures {
		if strings.Contains(msg, s) {
			return domain.WithKind(domain.ErrKindMessageEditFailed, fmt.Errorf("%w: %s", ErrMessageEditFailed, apiErr.Message))
		}
	}

	if apiErr.Code == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrChatUnavailable, apiErr.Message)
	}
	for _, s := range chatGone {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %s", ErrChatUnavailable, apiErr.Message)
		}
	}

	return domain.WithKind(domain.ErrKindProtocol, fmt.Errorf("telegram api error %d: %s", apiErr.Code, apiErr.Message))
}

// isNotModified is the benign edit failure seen when the text did not change.
func isNotModified(err error) bool {
	return errors.Is(err, ErrMessageEditFailed) && strings.Contains(strings.ToLower(err.Error()), "not modified")
}
