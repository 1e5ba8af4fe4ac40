package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"botrelay/internal/microservices/rpc"

	"github.com/redis/go-redis/v9"
)

// Publisher is the part of a redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes every event as JSON on a Redis pub/sub channel.
// Publish failures are logged and never stop the subscription.
type RedisSink struct {
	client  Publisher
	channel string
	logger  *slog.Logger
}

func NewRedisSink(client Publisher, channel string, logger *slog.Logger) *RedisSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{client: client, channel: channel, logger: logger}
}

// DialRedis connects to the Redis URL and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *RedisSink) Received(ctx context.Context, msg *rpc.BroadcastMessage) {
	s.publish(ctx, MessageEvent(msg))
}

func (s *RedisSink) Ended(ctx context.Context) {
	s.publish(ctx, EndedEvent())
}

func (s *RedisSink) Errored(ctx context.Context, err error) {
	s.publish(ctx, ErrorEvent(err))
}

func (s *RedisSink) publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("failed to encode broadcast event", "error", err)
		return
	}
	if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
		s.logger.Warn("redis publish failed", "channel", s.channel, "type", ev.Type, "error", err)
	}
}
