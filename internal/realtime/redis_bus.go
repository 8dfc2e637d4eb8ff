package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultChannel = "chat:events"

type redisBus struct {
	logger  zerolog.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to redis and returns a pub/sub backed Bus. An empty
// channel name falls back to "chat:events".
func NewRedisBus(logger zerolog.Logger, redisURL, channel string) (Bus, error) {
	if channel == "" {
		channel = defaultChannel
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{logger: logger, rdb: rdb, channel: channel}, nil
}

func (b *redisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the event channel and feeds decoded events to
// onEvent until ctx is cancelled. The initial Receive confirms the
// subscription is actually established before returning.
func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.logger.Warn().Err(err).Msg("bad redis event payload")
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}

// Client exposes the underlying redis client for components that share the
// connection, such as the send rate limiter.
func (b *redisBus) Client() *goredis.Client {
	return b.rdb
}

// RedisClient returns the redis client behind a Bus when it is redis-backed.
func RedisClient(b Bus) *goredis.Client {
	rb, ok := b.(*redisBus)
	if !ok {
		return nil
	}
	return rb.rdb
}
