package model

import "time"

// Status is the lifecycle state of a WhatsApp session.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusQR           Status = "qr"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Active reports whether the status counts against the per-tenant and
// global session caps.
func (s Status) Active() bool {
	switch s {
	case StatusConnecting, StatusQR, StatusConnected:
		return true
	}
	return false
}

// Session is the live session record. It is owned by the in-memory registry
// while the session exists; the repository only ever sees snapshots of it.
type Session struct {
	SessionID      string     `json:"session_id"`
	TenantID       int64      `json:"tenant_id"`
	Phone          string     `json:"phone"`
	Status         Status     `json:"status"`
	QR             string     `json:"qr,omitempty"` // PNG data URI, set only while Status == StatusQR
	CreatedAt      time.Time  `json:"created_at"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// SessionRow represents the whatsapp_sessions table. It mirrors the live
// record into durable storage on every transition so status and pairing
// history survive a restart. QRPayload carries the raw pairing payload; the
// repository seals it before it touches the database.
type SessionRow struct {
	SessionID      string     `json:"session_id"`
	TenantID       int64      `json:"tenant_id"`
	Phone          string     `json:"phone"`
	Status         Status     `json:"status"`
	QRPayload      string     `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

// SessionSummary is the listing shape handed to the HTTP boundary.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Phone     string `json:"phone"`
	Status    Status `json:"status"`
	HasQR     bool   `json:"has_qr"`
}
