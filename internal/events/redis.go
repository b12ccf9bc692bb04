package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRedisChannel = "bourse:events"
	redisPublishTimeout = time.Second
)

// RedisSink publishes every event on a Redis pub/sub channel so processes
// outside the market can follow it.
type RedisSink struct {
	client  *redis.Client
	channel string
}

var _ Sink = (*RedisSink)(nil)

func NewRedisSink(addr, password string, db int, channel string) *RedisSink {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: rdb, channel: channel}
}

// Ping checks that the server is reachable.
func (r *RedisSink) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSink) Publish(ev Event) {
	msg, err := Encode(ev)
	if err != nil {
		log.Error().Err(err).Msg("unable to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		log.Error().
			Err(err).
			Str("channel", r.channel).
			Str("type", ev.Type()).
			Msg("unable to publish event to redis")
	}
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
