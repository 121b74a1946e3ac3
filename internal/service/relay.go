package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/whatsapp-session-service/internal/driver"
)

const jidSuffix = "@s.whatsapp.net"

// InboundMessage is the normalized shape handed to the ticket system.
type InboundMessage struct {
	SessionID string    `json:"session_id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageSink receives inbound messages for card/ticket linking. The
// implementation lives outside this service.
type MessageSink interface {
	HandleInbound(ctx context.Context, msg InboundMessage)
}

// Relay carries messages between the driver and the ticket system. Outbound
// is a thin pass-through in the manager; inbound lands here.
type Relay struct {
	sink MessageSink
}

func NewRelay(sink MessageSink) *Relay {
	return &Relay{sink: sink}
}

// Deliver normalizes a driver message event and forwards it to the sink.
// Without a sink the message is dropped; fan-in is strictly best effort.
func (r *Relay) Deliver(sessionID string, msg driver.InboundMessage) {
	if r.sink == nil {
		log.Debug().Str("session_id", sessionID).Msg("No message sink registered, dropping inbound message")
		return
	}
	r.sink.HandleInbound(context.Background(), InboundMessage{
		SessionID: sessionID,
		From:      digitsOnly(msg.From),
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	})
}

// WhatsAppJID normalizes a destination phone into the driver's addressing
// format: digits only plus the user-server suffix.
func WhatsAppJID(to string) string {
	return digitsOnly(to) + jidSuffix
}
