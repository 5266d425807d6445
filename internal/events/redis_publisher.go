package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// ChannelPublisher sends raw payloads to a pub/sub channel. *persistence.Redis
// satisfies it.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher forwards events as JSON to a redis pub/sub channel.
type RedisPublisher struct {
	client  ChannelPublisher
	channel string
}

// NewRedisPublisher returns nil when client or channel is missing, which
// disables fan-out.
func NewRedisPublisher(client ChannelPublisher, channel string) *RedisPublisher {
	if client == nil || channel == "" {
		return nil
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Channel returns the target channel name.
func (p *RedisPublisher) Channel() string {
	if p == nil {
		return ""
	}
	return p.channel
}

// Handle publishes event. It has the EventHandler signature so it can be
// subscribed to a Dispatcher directly.
func (p *RedisPublisher) Handle(ctx context.Context, event Event) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, body); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}
