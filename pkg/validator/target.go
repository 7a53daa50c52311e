package validator

import (
	"net/url"
	"strings"
)

// ValidateTarget проверяет URL цели для указанного типа
func ValidateTarget(kind, target string) bool {
	if target == "" {
		return false
	}

	// Для dns достаточно имени хоста google.com
	if kind == "dns" {
		return !strings.Contains(target, "://") && !strings.ContainsAny(target, " /")
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return false
	}

	switch kind {
	case "http":
		return u.Scheme == "http" || u.Scheme == "https"
	case "websocket", "socketio":
		return u.Scheme == "ws" || u.Scheme == "wss"
	}

	return false
}

func ValidateTargetKind(kind string) bool {
	validKinds := map[string]bool{
		"websocket": true,
		"socketio":  true,
		"http":      true,
		"dns":       true,
	}

	// Если не входит в validKinds вернет false
	return validKinds[kind]
}
