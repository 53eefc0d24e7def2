package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisDialTimeout = 5 * time.Second

// RedisBus fans changes out over a Redis pub/sub channel so several
// reclaim processes can share one change stream.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisBus connects to addr and verifies the connection.
func NewRedisBus(addr, channel string, logger *slog.Logger) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if channel == "" {
		channel = "reclaim.changes"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: redisDialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	logger.Info("connected to redis", "addr", addr, "channel", channel)
	return &RedisBus{rdb: rdb, channel: channel, logger: logger}, nil
}

// Publish encodes c as JSON and publishes it.
func (b *RedisBus) Publish(ctx context.Context, c Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}
	return nil
}

// Subscribe starts a forwarder goroutine that decodes messages and calls fn.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(Change)) error {
	if fn == nil {
		return fmt.Errorf("subscriber callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				c, err := decodeChange(m.Payload)
				if err != nil {
					b.logger.Warn("bad change payload", "error", err)
					continue
				}
				fn(c)
			}
		}
	}()
	return nil
}

// Close closes the client.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func decodeChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, err
	}
	if c.Kind == "" {
		return Change{}, fmt.Errorf("change without kind")
	}
	return c, nil
}
