package monitor

import (
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Base: 5 * time.Second, Max: 60 * time.Second}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{5, 25 * time.Second},
		{12, 60 * time.Second},
		{20, 60 * time.Second},
		{1 << 40, 60 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.failures); got != tt.want {
			t.Fatalf("Delay(%d) = %s, want %s", tt.failures, got, tt.want)
		}
	}
}

func TestBackoff_Default(t *testing.T) {
	b := DefaultBackoff()
	if b.Delay(1) != DefaultBackoffBase || b.Delay(100) != DefaultBackoffMax {
		t.Fatalf("unexpected default backoff %+v", b)
	}
}
