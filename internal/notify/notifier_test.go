package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teresa-solution/whatsapp-session-service/internal/model"
)

type mockRedisClient struct {
	channels []string
	payloads [][]byte
	err      error
}

func (m *mockRedisClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.channels = append(m.channels, channel)
	m.payloads = append(m.payloads, message.([]byte))
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	return redis.NewIntResult(1, nil)
}

func (m *mockRedisClient) Close() error {
	return nil
}

func TestNotifier_Publish(t *testing.T) {
	client := &mockRedisClient{}
	notifier := NewNotifierWithClient(client)

	notifier.Publish("tenant_42_5511999999999", "qr", model.StatusQR, true)

	require.Len(t, client.channels, 1)
	assert.Equal(t, "wa:session:tenant_42_5511999999999", client.channels[0])

	var event Event
	require.NoError(t, json.Unmarshal(client.payloads[0], &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "tenant_42_5511999999999", event.SessionID)
	assert.Equal(t, "qr", event.Event)
	assert.Equal(t, model.StatusQR, event.Status)
	assert.True(t, event.HasQR)
	assert.False(t, event.Timestamp.IsZero())
}

func TestNotifier_PublishFailureIsSwallowed(t *testing.T) {
	client := &mockRedisClient{err: errors.New("connection refused")}
	notifier := NewNotifierWithClient(client)

	// Fan-out is best effort: a dead channel must never surface an error
	assert.NotPanics(t, func() {
		notifier.Publish("tenant_1_123", "disconnected", model.StatusDisconnected, false)
	})
	assert.Len(t, client.channels, 1)
}
