package domain

import "time"

type TargetKind string

const (
	KindWebSocket TargetKind = "websocket"
	KindSocketIO  TargetKind = "socketio"
	KindHTTP      TargetKind = "http"
	KindDNS       TargetKind = "dns"
)

// Streaming сообщает, держит ли цель постоянное соединение
func (k TargetKind) Streaming() bool {
	return k == KindWebSocket || k == KindSocketIO
}

// EndpointTarget is immutable once loaded from configuration.
type EndpointTarget struct {
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Kind          TargetKind    `json:"kind"`
	CheckInterval time.Duration `json:"check_interval"`
	Timeout       time.Duration `json:"timeout"`
}
