package redisstate

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisRelay 通过 Redis Pub/Sub 在多个服务实例之间转发房间事件
type RedisRelay struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRelay 创建 RedisRelay 实例
func NewRedisRelay(client *redis.Client, keyPrefix string) *RedisRelay {
	if client == nil {
		panic("redis client cannot be nil for RedisRelay")
	}
	if keyPrefix == "" {
		keyPrefix = "cr:" // 默认前缀 "cr:" (coding room)
	}
	return &RedisRelay{client: client, keyPrefix: keyPrefix}
}

// roomEventsChannel 返回房间事件频道名
func (r *RedisRelay) roomEventsChannel(roomID string) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, roomID)
}

// roomIDFromChannel 从频道名中解析房间 ID
func (r *RedisRelay) roomIDFromChannel(channel string) (string, bool) {
	rest := strings.TrimPrefix(channel, r.keyPrefix+"room:")
	if rest == channel {
		return "", false
	}
	roomID := strings.TrimSuffix(rest, ":events")
	if roomID == rest || roomID == "" {
		return "", false
	}
	return roomID, true
}

// Publish 将已编码的事件发布到房间频道
func (r *RedisRelay) Publish(ctx context.Context, roomID string, payload []byte) error {
	channel := r.roomEventsChannel(roomID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"room_id":      roomID,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe 按模式订阅所有房间频道并把消息交给 handler，直到 ctx 结束。
func (r *RedisRelay) Subscribe(ctx context.Context, handler func(roomID string, payload []byte)) error {
	pattern := r.keyPrefix + "room:*:events"
	pubsub := r.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	// 等待订阅确认
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: failed to psubscribe %s: %w", pattern, err)
	}
	logrus.WithField("pattern", pattern).Info("Relay subscribed to room events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			logrus.WithField("pattern", pattern).Info("Relay subscription stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis: subscription channel for %s closed", pattern)
			}
			roomID, ok := r.roomIDFromChannel(msg.Channel)
			if !ok {
				logrus.WithField("channel", msg.Channel).Warn("Relay received message on unexpected channel")
				continue
			}
			handler(roomID, []byte(msg.Payload))
		}
	}
}
