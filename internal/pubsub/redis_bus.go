// Package pubsub carries settings change notifications between registry
// processes that share one database.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"familyregistry/internal/logger"
)

var errNotInitialized = errors.New("redis bus not initialized")

// Message is the payload published on every settings write
type Message struct {
	Origin string    `json:"origin"`
	Key    string    `json:"key"`
	At     time.Time `json:"at"`
}

// RedisBus publishes and receives settings changes over a Redis channel.
// Messages published by this process are not delivered back to it.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

// NewRedisBus connects to the Redis server at url (redis://host:port/db) and
// verifies the connection
func NewRedisBus(ctx context.Context, url, channel string, log *logger.Logger) (*RedisBus, error) {
	if log == nil {
		log = logger.Nop()
	}
	if channel == "" {
		channel = "settings:invalidate"
	}

	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisBus(rdb, channel, log), nil
}

func newRedisBus(rdb *goredis.Client, channel string, log *logger.Logger) *RedisBus {
	origin := uuid.NewString()
	return &RedisBus{
		log:     log.With("service", "RedisBus", "origin", origin),
		rdb:     rdb,
		channel: channel,
		origin:  origin,
	}
}

// Publish announces that key changed
func (b *RedisBus) Publish(ctx context.Context, key string) error {
	if b == nil || b.rdb == nil {
		return errNotInitialized
	}
	raw, err := json.Marshal(Message{Origin: b.origin, Key: key, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe delivers the keys changed by other processes to handler until ctx
// is done. It returns once the subscription is confirmed by the server.
func (b *RedisBus) Subscribe(ctx context.Context, handler func(key string)) error {
	if b == nil || b.rdb == nil {
		return errNotInitialized
	}
	if handler == nil {
		return errors.New("handler required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
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
				if key, ok := b.decode(m.Payload); ok {
					handler(key)
				}
			}
		}
	}()

	return nil
}

// decode parses a payload and reports whether it came from another process
func (b *RedisBus) decode(payload string) (string, bool) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.log.Warn("bad settings payload", "error", err)
		return "", false
	}
	if msg.Origin == b.origin {
		return "", false
	}
	return msg.Key, true
}

// Close releases the Redis connection
func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
