package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/observability"
)

// RedisPublisher fans engine events out to the notification channel the
// websocket layer consumes. Channels are tenant-scoped so subscribers never
// see cross-tenant traffic.
type RedisPublisher struct {
	client  *redis.Client
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewRedisPublisher creates the publisher.
func NewRedisPublisher(client *redis.Client, logger *zap.Logger, metrics *observability.Metrics) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger, metrics: metrics}
}

// Register subscribes the publisher to every dispatcher event.
func (p *RedisPublisher) Register(dispatcher Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(CatchAll, p.handle)
}

func (p *RedisPublisher) handle(ctx context.Context, event Event) error {
	if p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event", zap.String("type", string(event.Type)), zap.Error(err))
		return err
	}
	channel := "sla:events:" + event.TenantID
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Warn("publish event",
			zap.String("channel", channel),
			zap.String("type", string(event.Type)),
			zap.Error(err))
		return err
	}
	p.metrics.RecordEventPublished(string(event.Type))
	return nil
}
