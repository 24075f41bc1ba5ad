package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chronoworks/timesheet-system/internal/api/metrics"
)

const (
	consumerGroup = "notifiers"
	readBlock     = 5 * time.Second
	readCount     = 10
)

// StreamTransport is the durable-queue implementation, backed by Redis
// Streams. Messages are persistent, capped by MAXLEN with oldest-first
// eviction, expired by MINID trimming (stream entry IDs are millisecond
// timestamps), and consumed through a consumer group: XACK on handler
// success, pending-entry redelivery after the visibility interval on
// failure. Messages redelivered past the delivery ceiling are appended to
// the queue's dead-letter stream and acknowledged.
type StreamTransport struct {
	client        *redis.Client
	consumer      string
	visibility    time.Duration
	maxDeliveries int64
	log           zerolog.Logger

	mu       sync.Mutex
	declared map[string]DeclareOptions
}

var _ Transport = (*StreamTransport)(nil)

// ConnectStream dials Redis with bounded retries and returns a
// StreamTransport. On retry exhaustion the error wraps ErrNotConnected and
// the caller should continue with a nil transport.
func ConnectStream(ctx context.Context, cfg Config, retries int, delay time.Duration, log zerolog.Logger) (*StreamTransport, error) {
	client, err := Dial(ctx, cfg, retries, delay, log)
	if err != nil {
		return nil, err
	}
	return NewStreamTransport(client, cfg, log), nil
}

// NewStreamTransport wraps an established Redis client.
func NewStreamTransport(client *redis.Client, cfg Config, log zerolog.Logger) *StreamTransport {
	visibility := cfg.Visibility
	if visibility <= 0 {
		visibility = defaultVisibility
	}
	maxDeliveries := cfg.MaxDeliveries
	if maxDeliveries <= 0 {
		maxDeliveries = defaultMaxDeliveries
	}
	return &StreamTransport{
		client:        client,
		consumer:      "consumer-" + time.Now().UTC().Format("20060102150405.000"),
		visibility:    visibility,
		maxDeliveries: maxDeliveries,
		log:           log,
		declared:      make(map[string]DeclareOptions),
	}
}

// Declare creates the stream and its consumer group if they do not exist
// yet. Safe to call repeatedly.
func (t *StreamTransport) Declare(ctx context.Context, name string, opts DeclareOptions) error {
	err := t.client.XGroupCreateMkStream(ctx, name, consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("declare %s: %w", name, err)
	}

	t.mu.Lock()
	t.declared[name] = opts
	t.mu.Unlock()

	t.log.Info().Str("queue", name).
		Dur("ttl", opts.TTL).
		Int64("max_length", opts.MaxLength).
		Msg("queue declared")
	return nil
}

func (t *StreamTransport) Publish(ctx context.Context, name, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish %s: marshal: %w", name, err)
	}

	opts := t.options(name)
	args := &redis.XAddArgs{
		Stream: name,
		Values: map[string]any{
			"type":    eventType,
			"body":    string(body),
			"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	if opts.MaxLength > 0 {
		args.MaxLen = opts.MaxLength
		args.Approx = true
	}

	id, err := t.client.XAdd(ctx, args).Result()
	if err != nil {
		metrics.EventsPublishFailuresTotal.WithLabelValues(name).Inc()
		return fmt.Errorf("publish %s: %w", name, err)
	}

	if opts.TTL > 0 {
		// Entry IDs are "<unix-ms>-<seq>", so trimming below now-TTL
		// implements message expiry.
		minID := fmt.Sprintf("%d-0", time.Now().Add(-opts.TTL).UnixMilli())
		if err := t.client.XTrimMinIDApprox(ctx, name, minID, 0).Err(); err != nil {
			t.log.Warn().Err(err).Str("queue", name).Msg("ttl trim failed")
		}
	}

	metrics.EventsPublishedTotal.WithLabelValues(name).Inc()
	t.log.Debug().Str("queue", name).Str("message_id", id).Str("type", eventType).Msg("published")
	return nil
}

// Consume starts one background consumer goroutine for the queue. Messages
// are processed one at a time in delivery order; distinct queues run
// independent consumers.
func (t *StreamTransport) Consume(ctx context.Context, name string, h Handler) error {
	if _, ok := t.lookupOptions(name); !ok {
		return fmt.Errorf("consume %s: queue not declared", name)
	}
	go t.consumeLoop(ctx, name, h)
	return nil
}

func (t *StreamTransport) consumeLoop(ctx context.Context, name string, h Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		t.reclaimPending(ctx, name, h)

		res, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: t.consumer,
			Streams:  []string{name, ">"},
			Count:    readCount,
			Block:    readBlock,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			t.log.Error().Err(err).Str("queue", name).Msg("read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range res {
			for _, xm := range stream.Messages {
				t.process(ctx, name, h, toMessage(xm, 1))
			}
		}
	}
}

// reclaimPending redelivers messages another (or this) consumer left
// unacknowledged longer than the visibility interval. Messages past the
// delivery ceiling go to the dead-letter stream instead.
func (t *StreamTransport) reclaimPending(ctx context.Context, name string, h Handler) {
	pending, err := t.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: name,
		Group:  consumerGroup,
		Idle:   t.visibility,
		Start:  "-",
		End:    "+",
		Count:  readCount,
	}).Result()
	if err != nil || len(pending) == 0 {
		return
	}

	ids := make([]string, 0, len(pending))
	retries := make(map[string]int64, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
		retries[p.ID] = p.RetryCount
	}

	claimed, err := t.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   name,
		Group:    consumerGroup,
		Consumer: t.consumer,
		MinIdle:  t.visibility,
		Messages: ids,
	}).Result()
	if err != nil {
		t.log.Warn().Err(err).Str("queue", name).Msg("claim failed")
		return
	}

	for _, xm := range claimed {
		// Claiming bumps the delivery counter, so the count seen in
		// XPENDING plus one is the current delivery.
		deliveries := retries[xm.ID] + 1
		msg := toMessage(xm, deliveries)

		if deliveries > t.maxDeliveries {
			t.deadLetter(ctx, name, msg)
			continue
		}
		t.process(ctx, name, h, msg)
	}
}

// process runs the handler: ack on success, leave pending for redelivery
// on failure.
func (t *StreamTransport) process(ctx context.Context, name string, h Handler, msg Message) {
	if err := h(ctx, msg); err != nil {
		metrics.MessagesConsumedTotal.WithLabelValues(name, "requeued").Inc()
		t.log.Error().Err(err).
			Str("queue", name).
			Str("message_id", msg.ID).
			Int64("deliveries", msg.Deliveries).
			Msg("handler failed, message will be redelivered")
		return
	}

	if err := t.client.XAck(ctx, name, consumerGroup, msg.ID).Err(); err != nil {
		t.log.Warn().Err(err).Str("queue", name).Str("message_id", msg.ID).Msg("ack failed")
		return
	}
	metrics.MessagesConsumedTotal.WithLabelValues(name, "acked").Inc()
	t.log.Debug().Str("queue", name).Str("message_id", msg.ID).Msg("acknowledged")
}

func (t *StreamTransport) deadLetter(ctx context.Context, name string, msg Message) {
	dead := DeadLetterQueue(name)
	err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dead,
		Values: map[string]any{
			"type":       msg.Type,
			"body":       string(msg.Body),
			"sent_at":    msg.SentAt.Format(time.RFC3339Nano),
			"source":     name,
			"deliveries": msg.Deliveries,
		},
	}).Err()
	if err != nil {
		t.log.Error().Err(err).Str("queue", name).Str("message_id", msg.ID).Msg("dead-letter append failed")
		return
	}

	if err := t.client.XAck(ctx, name, consumerGroup, msg.ID).Err(); err != nil {
		t.log.Warn().Err(err).Str("queue", name).Str("message_id", msg.ID).Msg("dead-letter ack failed")
	}
	metrics.MessagesDeadLetteredTotal.WithLabelValues(name).Inc()
	t.log.Warn().
		Str("queue", name).
		Str("message_id", msg.ID).
		Int64("deliveries", msg.Deliveries).
		Msg("delivery budget exhausted, message dead-lettered")
}

func (t *StreamTransport) Stats(ctx context.Context, name string) (Stats, error) {
	depth, err := t.client.XLen(ctx, name).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("stats %s: %w", name, err)
	}

	var consumers int64
	groups, err := t.client.XInfoGroups(ctx, name).Result()
	if err == nil {
		for _, g := range groups {
			if g.Name == consumerGroup {
				consumers = g.Consumers
			}
		}
	}

	metrics.QueueDepth.WithLabelValues(name).Set(float64(depth))
	return Stats{Queue: name, Messages: depth, Consumers: consumers}, nil
}

func (t *StreamTransport) Close() error {
	return t.client.Close()
}

func (t *StreamTransport) options(name string) DeclareOptions {
	opts, _ := t.lookupOptions(name)
	return opts
}

func (t *StreamTransport) lookupOptions(name string) (DeclareOptions, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	opts, ok := t.declared[name]
	return opts, ok
}

func toMessage(xm redis.XMessage, deliveries int64) Message {
	msg := Message{ID: xm.ID, Deliveries: deliveries}
	if v, ok := xm.Values["type"].(string); ok {
		msg.Type = v
	}
	if v, ok := xm.Values["body"].(string); ok {
		msg.Body = []byte(v)
	}
	if v, ok := xm.Values["sent_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			msg.SentAt = ts
		}
	}
	return msg
}
