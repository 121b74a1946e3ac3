package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/whatsapp-session-service/internal/driver"
)

type captureSink struct {
	messages []InboundMessage
}

func (s *captureSink) HandleInbound(ctx context.Context, msg InboundMessage) {
	s.messages = append(s.messages, msg)
}

func TestRelay_DeliverNormalizes(t *testing.T) {
	sink := &captureSink{}
	relay := NewRelay(sink)

	ts := time.Now()
	relay.Deliver("tenant_1_5511999999999", driver.InboundMessage{
		From:      "+55 (11) 98888-7777",
		Text:      "order status?",
		Timestamp: ts,
	})

	require.Len(t, sink.messages, 1)
	msg := sink.messages[0]
	assert.Equal(t, "tenant_1_5511999999999", msg.SessionID)
	assert.Equal(t, "5511988887777", msg.From)
	assert.Equal(t, "order status?", msg.Text)
	assert.Equal(t, ts, msg.Timestamp)
}

func TestRelay_NoSinkIsNoOp(t *testing.T) {
	relay := NewRelay(nil)
	assert.NotPanics(t, func() {
		relay.Deliver("tenant_1_123", driver.InboundMessage{From: "123", Text: "hi"})
	})
}

func TestWhatsAppJID(t *testing.T) {
	assert.Equal(t, "5511999999999@s.whatsapp.net", WhatsAppJID("5511999999999"))
	assert.Equal(t, "5511999999999@s.whatsapp.net", WhatsAppJID("+55 (11) 99999-9999"))
}
