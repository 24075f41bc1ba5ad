// Package queue provides durable, at-least-once delivery of domain events
// over Redis. Two interchangeable transports are offered: a Streams-backed
// durable queue with consumer-group acknowledgements, and a list-backed
// long-poll queue with visibility-timeout redelivery in the style of a
// managed cloud queue.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when the transport gave up connecting. Hosts
// keep serving HTTP with a nil transport; publishes become log-and-skip.
var ErrNotConnected = errors.New("queue: not connected")

// Handler processes one delivered message. A nil return acknowledges the
// message; an error leaves it for redelivery.
type Handler func(ctx context.Context, msg Message) error

// Message is the envelope every transport delivers.
type Message struct {
	ID     string
	Type   string
	Body   []byte
	SentAt time.Time
	// Deliveries counts how many times this message has been handed to a
	// consumer, this delivery included.
	Deliveries int64
}

// DeclareOptions bound a declared queue. TTL expires old messages;
// MaxLength caps capacity with oldest-first eviction.
type DeclareOptions struct {
	TTL       time.Duration
	MaxLength int64
}

// Stats reports a queue's depth and attached consumer count.
type Stats struct {
	Queue     string `json:"queue"`
	Messages  int64  `json:"messages"`
	Consumers int64  `json:"consumers"`
}

// Transport abstracts the broker. Both implementations guarantee
// at-least-once delivery: a message is deleted only after its handler
// returns nil, and a message redelivered more than the configured ceiling
// is moved to the queue's dead-letter destination instead of looping
// forever.
type Transport interface {
	// Declare is idempotent and must be called before Publish or Consume.
	Declare(ctx context.Context, name string, opts DeclareOptions) error
	// Publish serializes payload as JSON and enqueues it durably.
	Publish(ctx context.Context, name, eventType string, payload any) error
	// Consume starts a background consumer for the queue. It returns once
	// the consumer is running; the consumer stops when ctx is cancelled.
	Consume(ctx context.Context, name string, h Handler) error
	Stats(ctx context.Context, name string) (Stats, error)
	Close() error
}

// DeadLetterQueue names the destination for messages that exhausted their
// delivery budget.
func DeadLetterQueue(name string) string {
	return name + ".dead"
}

// Config carries transport settings shared by both implementations.
type Config struct {
	Addr          string
	DB            int
	Visibility    time.Duration
	MaxDeliveries int64
}

const (
	defaultVisibility    = 30 * time.Second
	defaultMaxDeliveries = 5
	dialTimeout          = 5 * time.Second
)

// Connect builds the transport selected by name: "poll" for the
// list-backed long-poll queue, anything else for the Streams-backed
// durable queue. Dialing retries with a fixed delay; exhaustion returns an
// error wrapping ErrNotConnected.
func Connect(ctx context.Context, name string, cfg Config, retries int, delay time.Duration, log zerolog.Logger) (Transport, error) {
	if name == "poll" {
		t, err := ConnectPoll(ctx, cfg, retries, delay, log)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	t, err := ConnectStream(ctx, cfg, retries, delay, log)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Dial connects to Redis with bounded fixed-delay retries. Each failure is
// logged and followed by a sleep of delay; exhausting retries returns
// ErrNotConnected so the host can continue in degraded mode.
func Dial(ctx context.Context, cfg Config, retries int, delay time.Duration, log zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})

	for attempt := 1; attempt <= retries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			log.Info().Str("addr", cfg.Addr).Int("attempt", attempt).Msg("queue connected")
			return client, nil
		}

		log.Error().Err(err).
			Int("attempt", attempt).
			Int("retries", retries).
			Msg("queue connection failed")

		if attempt < retries {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("dial after %d attempts: %w", retries, ErrNotConnected)
}
