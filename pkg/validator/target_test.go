package validator

import "testing"

func TestValidateTarget(t *testing.T) {
	cases := []struct {
		kind   string
		target string
		want   bool
	}{
		{"http", "https://prod.api.sauron.outlight.fun/api/channels", true},
		{"http", "http://localhost:8080", true},
		{"http", "wss://price.outlight.fun/ws", false},
		{"http", "", false},
		{"websocket", "wss://price.outlight.fun/ws?token=abc", true},
		{"socketio", "wss://prod.api.sauron.outlight.fun/socket.io/?EIO=4&transport=websocket", true},
		{"websocket", "https://price.outlight.fun/ws", false},
		{"websocket", "wss://", false},
		{"dns", "prod.api.sauron.outlight.fun", true},
		{"dns", "https://prod.api.sauron.outlight.fun", false},
		{"ftp", "ftp://example.com", false},
	}

	for _, tc := range cases {
		if got := ValidateTarget(tc.kind, tc.target); got != tc.want {
			t.Errorf("ValidateTarget(%q, %q) = %v, want %v", tc.kind, tc.target, got, tc.want)
		}
	}
}

func TestValidateTargetKind(t *testing.T) {
	for _, kind := range []string{"websocket", "socketio", "http", "dns"} {
		if !ValidateTargetKind(kind) {
			t.Errorf("expected %q to be valid", kind)
		}
	}
	if ValidateTargetKind("ping") {
		t.Error("expected ping to be rejected")
	}
}
