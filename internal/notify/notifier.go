package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/whatsapp-session-service/internal/model"
)

const channelPrefix = "wa:session:"

const publishTimeout = 2 * time.Second

type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Event is the payload pushed to the realtime channel for a session.
type Event struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	Event     string       `json:"event"`
	Status    model.Status `json:"status"`
	HasQR     bool         `json:"has_qr"`
	Timestamp time.Time    `json:"timestamp"`
}

// Notifier fans lifecycle events out over redis pub/sub, one channel per
// session. Publishing to a channel nobody subscribed to is a no-op, which is
// exactly the best-effort contract the manager expects.
type Notifier struct {
	redis RedisClient // Updated to use the interface
}

func NewNotifier(addr string) *Notifier {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "",
		DB:       0,
	})
	return &Notifier{redis: rdb}
}

// NewNotifierWithClient is the test seam.
func NewNotifierWithClient(client RedisClient) *Notifier {
	return &Notifier{redis: client}
}

// Publish emits one event for a session. Failures are logged and swallowed.
func (n *Notifier) Publish(sessionID, event string, status model.Status, hasQR bool) {
	payload, err := json.Marshal(Event{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Event:     event,
		Status:    status,
		HasQR:     hasQR,
		Timestamp: time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to marshal session event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := n.redis.Publish(ctx, channelPrefix+sessionID, payload).Err(); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to publish session event")
	}
}

func (n *Notifier) Close() error {
	return n.redis.Close()
}
