package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher broadcasts state changes on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher creates a publisher on the given channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  slog.Default().With("component", "notify"),
	}
}

// PublishStateChange implements Publisher. Failures are logged and
// swallowed; notifications are best-effort.
func (p *RedisPublisher) PublishStateChange(ctx context.Context, change StateChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		p.logger.Warn("failed to marshal state change", "error", err)
		return
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish state change",
			"entity_kind", change.EntityKind,
			"entity_id", change.EntityID,
			"error", err)
	}
}
