package gateway

import (
	"context"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
)

// DefaultRedisChannel carries the serialized snapshot for other processes.
const DefaultRedisChannel = "pub:prices"

// RedisSink publishes every snapshot on a Redis PubSub channel.
type RedisSink struct {
	rdb     *goredis.Client
	channel string
}

// NewRedisSink creates a sink publishing on channel. The sink owns rdb.
func NewRedisSink(rdb *goredis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{rdb: rdb, channel: channel}
}

// Publish sends payload to the channel.
func (s *RedisSink) Publish(ctx context.Context, payload []byte) error {
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisSink) Close() error { return s.rdb.Close() }
