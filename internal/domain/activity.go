package domain

import "time"

type ActivityLevel string

const (
	ActivityInfo       ActivityLevel = "INFO"
	ActivitySuccess    ActivityLevel = "SUCCESS"
	ActivityWarning    ActivityLevel = "WARNING"
	ActivityError      ActivityLevel = "ERROR"
	ActivityConnecting ActivityLevel = "CONNECTING"
	ActivitySystem     ActivityLevel = "SYSTEM"
)

// ActivityEntry is one line of the monitoring activity feed.
type ActivityEntry struct {
	At      time.Time     `json:"at"`
	Level   ActivityLevel `json:"level"`
	Source  string        `json:"source"`
	Message string        `json:"message"`
}

// ActivityLevelFor maps a target state onto the feed level.
func ActivityLevelFor(state State) ActivityLevel {
	switch state {
	case StateConnected:
		return ActivitySuccess
	case StateConnecting:
		return ActivityConnecting
	case StateError:
		return ActivityError
	case StateWarning:
		return ActivityWarning
	default:
		return ActivityInfo
	}
}
