package constants

import "time"

const (
	HTTPTimeout          = 10 * time.Second
	DNSTimeout           = 5 * time.Second
	HandshakeTimeout     = 10 * time.Second
	WSPingInterval       = 20 * time.Second
	WSPingTimeout        = 10 * time.Second
	APICheckInterval     = 60 * time.Second
	PendingErrorGrace    = 20 * time.Second
	PendingCheckInterval = 5 * time.Second
	TelegramTick         = time.Second
	SessionTTL           = 24 * time.Hour
	SessionMaxAge        = 48 * time.Hour
	ShutdownTimeout      = 30 * time.Second
	RefreshThrottle      = 5 * time.Second
	ClearThrottle        = 3 * time.Second
)

const (
	MaxMessageLength   = 4096
	MessagePreviewLen  = 50
	RecentErrorsLimit  = 5
	PendingHistorySize = 50
	IncidentMessageLen = 100
	ActivityLogLimit   = 100
)
