package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"OutLight/internal/domain"
)

func TestObserveCheck(t *testing.T) {
	m := New()

	m.ObserveCheck(domain.CheckResult{Target: "API /api/channels", Outcome: domain.OutcomeSuccess, LatencyMS: 120})
	m.ObserveCheck(domain.CheckResult{Target: "API /api/channels", Outcome: domain.OutcomeError})

	if got := testutil.ToFloat64(m.checks.WithLabelValues("API /api/channels", "success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.checks.WithLabelValues("API /api/channels", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}

func TestTelegramCall_LabelsByErrorKind(t *testing.T) {
	m := New()
	m.TelegramCall("edit", domain.WithKind(domain.ErrKindRateLimited, errors.New("flood")))
	m.TelegramCall("edit", nil)

	if got := testutil.ToFloat64(m.telegramCalls.WithLabelValues("edit", "rate_limited")); got != 1 {
		t.Fatalf("expected rate_limited label, got %v", got)
	}
	if got := testutil.ToFloat64(m.telegramCalls.WithLabelValues("edit", "ok")); got != 1 {
		t.Fatalf("expected ok label, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheck(domain.CheckResult{})
	m.SkippedTick("x")
	m.Transition("x", domain.StateError)
	m.SetActiveSessions(3)
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.SkippedTick("API /api/channels")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "outlight_skipped_ticks_total") {
		t.Fatalf("expected outlight metrics in output")
	}
}
