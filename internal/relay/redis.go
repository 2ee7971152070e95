package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"mamacare.app/internal/obs"
)

// ChannelPrefix namespaces relay rooms on the Redis bus.
const ChannelPrefix = "mamacare:room:"

// RedisPublisher publishes events on Redis so every API instance can deliver them.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisPublisher wraps client.
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger, now: time.Now}
}

// Publish sends the event to channel ChannelPrefix+room.
func (p *RedisPublisher) Publish(ctx context.Context, room, eventType string, payload any) {
	evt, err := NewEvent(room, eventType, payload, p.now())
	if err != nil {
		obs.RelayPublished("error")
		p.logger.Warn("relay encode failed", zap.String("room", room), zap.String("type", eventType), zap.Error(err))
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		obs.RelayPublished("error")
		p.logger.Warn("relay encode failed", zap.String("room", room), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, ChannelPrefix+room, data).Err(); err != nil {
		obs.RelayPublished("error")
		p.logger.Warn("relay publish failed", zap.String("room", room), zap.String("type", eventType), zap.Error(err))
		return
	}
	obs.RelayPublished("ok")
}

// Bridge pattern-subscribes to every relay channel and feeds the local Hub.
type Bridge struct {
	client *redis.Client
	hub    *Hub
	logger *zap.Logger
	ready  chan struct{}
}

// NewBridge connects client to hub.
func NewBridge(client *redis.Client, hub *Hub, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{client: client, hub: hub, logger: logger, ready: make(chan struct{})}
}

// Ready is closed once the subscription is confirmed by Redis.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Run consumes messages until ctx ends.
func (b *Bridge) Run(ctx context.Context) error {
	ps := b.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	close(b.ready)
	b.logger.Info("relay bridge subscribed", zap.String("pattern", ChannelPrefix+"*"))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("relay: redis subscription closed")
			}
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.logger.Warn("relay bridge dropped malformed event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			b.hub.Deliver(evt)
		}
	}
}
