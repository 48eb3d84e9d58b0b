package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/pkg/metrics"
)

// RedisPublisher publishes notifications as JSON on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	metrics *metrics.Metrics
}

// NewRedisPublisher creates a publisher for channel. m may be nil.
func NewRedisPublisher(client *redis.Client, channel string, m *metrics.Metrics) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, metrics: m}
}

// Publish implements Subscriber.
func (p *RedisPublisher) Publish(ctx context.Context, n domain.Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		logger.Error("marshal notification", "type", n.Type, "error", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		logger.Error("publishing notification to redis", "channel", p.channel, "type", n.Type, "error", err)
		return
	}
	p.metrics.Notification("redis", string(n.Type))
}
