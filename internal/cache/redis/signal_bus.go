package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/paperhands/paperhands/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub. The feed
// publishes price ticks and the trading service publishes position lifecycle,
// achievement, and level-up events; the websocket hub subscribes to fan them
// out to connected clients.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription over one or more channels and
// returns a read-only stream of messages. The subscription closes when the
// context is cancelled; the returned channel is closed at that point too.
func (sb *SignalBus) Subscribe(ctx context.Context, channels ...string) (<-chan domain.BusMessage, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("redis: subscribe: no channels")
	}

	pubsub := sb.rdb.Subscribe(ctx, channels...)

	// Receive the confirmation so a bad connection fails here, not on first
	// read.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %v: %w", channels, err)
	}

	out := make(chan domain.BusMessage, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- domain.BusMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
