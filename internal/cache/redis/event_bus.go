package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
)

// recentTicksMax caps the stream of recent tick reports (XADD MAXLEN ~).
const recentTicksMax int64 = 1000

// RecentTicksStream holds the latest tick reports for replicas and tools
// that join after the fact.
const RecentTicksStream = "keeper:ticks"

// EventBus implements domain.EventBus with Redis Pub/Sub. Tick payloads are
// also appended to a capped stream.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.rdb}
}

// Publish sends payload on channel. Payloads on the tick channel are also
// appended to RecentTicksStream.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	if channel != domain.ChannelTick {
		return nil
	}
	args := &redis.XAddArgs{
		Stream: RecentTicksStream,
		MaxLen: recentTicksMax,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", RecentTicksStream, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. Glob
// patterns use PSUBSCRIBE. The returned channel closes when ctx is done.
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = b.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = b.rdb.Subscribe(ctx, channel)
	}

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
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
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Recent returns up to count of the newest tick payloads, newest first.
func (b *EventBus) Recent(ctx context.Context, count int64) ([][]byte, error) {
	msgs, err := b.rdb.XRevRangeN(ctx, RecentTicksStream, "+", "-", count).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", RecentTicksStream, err)
	}
	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		if p, ok := streamPayload(m.Values); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func streamPayload(values map[string]interface{}) ([]byte, bool) {
	switch v := values["payload"].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

var _ domain.EventBus = (*EventBus)(nil)
