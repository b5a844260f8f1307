// Package redisrelay shares position events between tracking-service
// instances over a Redis pub/sub channel.
package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trackhub/backend/services/tracking-service/internal/broadcast"
)

// DefaultChannel carries serialized broadcast events.
const DefaultChannel = "positions"

// Relay publishes events to Redis and replays every event seen on the
// channel, including its own, into the local hub.
type Relay struct {
	client  *redis.Client
	channel string
	local   *broadcast.Hub
	logger  *zap.Logger
}

// New builds a relay.
func New(client *redis.Client, channel string, local *broadcast.Hub, logger *zap.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger,
	}
}

// Publish sends the event to the channel.
func (r *Relay) Publish(ctx context.Context, event broadcast.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redisrelay: encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("redisrelay: publish: %w", err)
	}
	return nil
}

// Run forwards channel messages to the local hub until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redisrelay: subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("subscribed to realtime channel", zap.String("channel", r.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			delivered := r.local.PublishRaw([]byte(msg.Payload))
			r.logger.Debug("relayed realtime event", zap.Int("subscribers", delivered))
		}
	}
}
