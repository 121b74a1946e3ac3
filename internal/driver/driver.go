package driver

import (
	"context"
	"time"
)

// InboundMessage is a message received from the network, before relay
// normalization.
type InboundMessage struct {
	From      string // sender address as the transport reports it
	Text      string
	Timestamp time.Time
}

// SendResult describes an accepted outbound message.
type SendResult struct {
	MessageID string
	Timestamp time.Time
}

// Handlers are the event hooks the lifecycle manager binds at creation time,
// before Initialize is called. A nil hook is skipped.
//
// QR may fire several times while pairing is pending (codes rotate). Ready
// fires once when pairing and connection succeed. AuthFailure means the
// credentials or pairing were rejected and the session is terminally failed.
// Disconnected covers every other way a connection ends.
type Handlers struct {
	QR           func(payload string)
	Ready        func(phone string)
	AuthFailure  func(reason string)
	Disconnected func(reason string)
	Message      func(msg InboundMessage)
}

// Driver wraps one connection to the messaging network. A driver instance is
// exclusively owned by a single session record and must not be shared.
type Driver interface {
	// Initialize starts the connection attempt. Events are delivered through
	// the handlers bound at creation; Initialize itself returns quickly.
	Initialize(ctx context.Context) error

	// Send delivers a text message to a fully-qualified network address.
	Send(ctx context.Context, jid, text string) (*SendResult, error)

	// Logout invalidates the remote pairing. It may fail; callers must still
	// call Destroy afterwards.
	Logout(ctx context.Context) error

	// Destroy releases the connection and all client resources.
	Destroy()
}

// Factory creates drivers bound to an isolated per-session auth directory.
type Factory interface {
	New(sessionID, authDir string, handlers Handlers) (Driver, error)
}
