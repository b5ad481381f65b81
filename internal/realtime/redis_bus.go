package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus publishes events on a redis channel; a forwarder relays every
// message received on that channel, including our own, to local subscribers.
type RedisBus struct {
	log     *zap.Logger
	rdb     *goredis.Client
	channel string
	local   *MemoryBus
}

func NewRedisBus(log *zap.Logger, addr, channel string) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = "pyguide-events"
	}
	if log == nil {
		log = zap.NewNop()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{
		log:     log.With(zap.String("component", "redis_bus")),
		rdb:     rdb,
		channel: channel,
		local:   NewMemoryBus(0),
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	if b == nil || b.rdb == nil {
		return ErrNotConfigured
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(fn func(Event)) func() {
	return b.local.Subscribe(fn)
}

// StartForwarder subscribes to the redis channel until ctx is done.
func (b *RedisBus) StartForwarder(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return ErrNotConfigured
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				b.forward([]byte(m.Payload))
			}
		}
	}()

	return nil
}

func (b *RedisBus) forward(payload []byte) {
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		b.log.Warn("bad redis event payload", zap.Error(err))
		return
	}
	if err := b.local.Publish(context.Background(), e); err != nil {
		b.log.Warn("dropping forwarded event", zap.String("type", e.Type), zap.Error(err))
	}
}

// Ping is registered as a health probe.
func (b *RedisBus) Ping(ctx context.Context) error {
	if b == nil || b.rdb == nil {
		return ErrNotConfigured
	}
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	_ = b.local.Close()
	return b.rdb.Close()
}
