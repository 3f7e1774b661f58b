// Package client provides WebSocket and HTTP clients for the signal-sync server.
// Types mirror the server wire protocol without importing server packages.
package client

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgSignal MessageType = "signal"
)

// WSMessage is the envelope for state messages. Servers running with the
// envelope disabled send the bare state instead; see decodeMessage.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Name    string          `json:"name"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Count mirrors the counter state pushed by the server.
type Count struct {
	Value int64 `json:"value"`
}

// SessionInfo mirrors the entries of GET /api/sessions.
type SessionInfo struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	RemoteAddr string          `json:"remoteAddr"`
	StartedAt  time.Time       `json:"startedAt"`
	Seq        uint64          `json:"seq"`
	Value      json.RawMessage `json:"value,omitempty"`
}

// HealthReport mirrors GET /api/health.
type HealthReport struct {
	Status         string  `json:"status"`
	PID            int32   `json:"pid"`
	Uptime         string  `json:"uptime"`
	Goroutines     int     `json:"goroutines"`
	Threads        int32   `json:"threads"`
	RSSBytes       uint64  `json:"rssBytes"`
	CPUPercent     float64 `json:"cpuPercent"`
	SystemMemUsed  float64 `json:"systemMemUsedPercent"`
	ActiveSessions int     `json:"activeSessions"`
}
