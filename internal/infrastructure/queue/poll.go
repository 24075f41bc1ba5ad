package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/chronoworks/timesheet-system/internal/api/metrics"
)

const (
	pollBlock    = 5 * time.Second
	pollBatch    = 10
	reapInterval = 5 * time.Second
)

// envelope is the JSON body stored on the list for every message.
type envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Body       json.RawMessage `json:"body"`
	SentAt     time.Time       `json:"sentAt"`
	Deliveries int64           `json:"deliveries"`
}

// PollTransport is a managed-cloud-queue style implementation on Redis
// lists. Publish pushes to the head and trims the tail to the capacity
// cap; consumers long-poll with BLMOVE into a per-queue processing list
// and track an in-flight deadline in a sorted set. A reaper returns
// messages whose deadline passed to the main list with a bumped delivery
// count, or to the dead-letter list once the count passes the ceiling.
type PollTransport struct {
	client        *redis.Client
	visibility    time.Duration
	maxDeliveries int64
	log           zerolog.Logger

	mu        sync.Mutex
	declared  map[string]DeclareOptions
	consumers atomic.Int64
}

var _ Transport = (*PollTransport)(nil)

// ConnectPoll dials Redis with bounded retries and returns a
// PollTransport. On retry exhaustion the error wraps ErrNotConnected.
func ConnectPoll(ctx context.Context, cfg Config, retries int, delay time.Duration, log zerolog.Logger) (*PollTransport, error) {
	client, err := Dial(ctx, cfg, retries, delay, log)
	if err != nil {
		return nil, err
	}
	return NewPollTransport(client, cfg, log), nil
}

// NewPollTransport wraps an established Redis client.
func NewPollTransport(client *redis.Client, cfg Config, log zerolog.Logger) *PollTransport {
	visibility := cfg.Visibility
	if visibility <= 0 {
		visibility = defaultVisibility
	}
	maxDeliveries := cfg.MaxDeliveries
	if maxDeliveries <= 0 {
		maxDeliveries = defaultMaxDeliveries
	}
	return &PollTransport{
		client:        client,
		visibility:    visibility,
		maxDeliveries: maxDeliveries,
		log:           log,
		declared:      make(map[string]DeclareOptions),
	}
}

func processingList(name string) string { return name + ":processing" }
func inflightSet(name string) string    { return name + ":inflight" }

// Declare registers the queue's bounds. Lists need no broker-side setup.
func (t *PollTransport) Declare(ctx context.Context, name string, opts DeclareOptions) error {
	t.mu.Lock()
	t.declared[name] = opts
	t.mu.Unlock()

	t.log.Info().Str("queue", name).
		Dur("ttl", opts.TTL).
		Int64("max_length", opts.MaxLength).
		Msg("queue declared")
	return nil
}

func (t *PollTransport) Publish(ctx context.Context, name, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish %s: marshal: %w", name, err)
	}

	env := envelope{
		ID:         newMessageID(),
		Type:       eventType,
		Body:       body,
		SentAt:     time.Now().UTC(),
		Deliveries: 0,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("publish %s: marshal envelope: %w", name, err)
	}

	pipe := t.client.TxPipeline()
	pipe.LPush(ctx, name, raw)
	if opts := t.options(name); opts.MaxLength > 0 {
		// LPUSH puts the newest message at the head; trimming to the cap
		// evicts from the tail, which holds the oldest messages.
		pipe.LTrim(ctx, name, 0, opts.MaxLength-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.EventsPublishFailuresTotal.WithLabelValues(name).Inc()
		return fmt.Errorf("publish %s: %w", name, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(name).Inc()
	t.log.Debug().Str("queue", name).Str("message_id", env.ID).Str("type", eventType).Msg("published")
	return nil
}

// Consume starts the long-poll consumer and the in-flight reaper for the
// queue.
func (t *PollTransport) Consume(ctx context.Context, name string, h Handler) error {
	if _, ok := t.lookupOptions(name); !ok {
		return fmt.Errorf("consume %s: queue not declared", name)
	}
	t.consumers.Add(1)
	go t.pollLoop(ctx, name, h)
	go t.reapLoop(ctx, name)
	return nil
}

func (t *PollTransport) pollLoop(ctx context.Context, name string, h Handler) {
	defer t.consumers.Add(-1)
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := t.receive(ctx, name)
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			t.log.Error().Err(err).Str("queue", name).Msg("poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		for _, raw := range batch {
			t.deliver(ctx, name, h, raw)
		}
	}
}

// receive blocks for one message, then drains up to pollBatch-1 more
// without blocking so a backlog is worked in batches.
func (t *PollTransport) receive(ctx context.Context, name string) ([]string, error) {
	raw, err := t.client.BLMove(ctx, name, processingList(name), "RIGHT", "LEFT", pollBlock).Result()
	if err != nil {
		return nil, err
	}

	batch := []string{raw}
	for len(batch) < pollBatch {
		more, err := t.client.LMove(ctx, name, processingList(name), "RIGHT", "LEFT").Result()
		if err != nil {
			break
		}
		batch = append(batch, more)
	}
	return batch, nil
}

func (t *PollTransport) deliver(ctx context.Context, name string, h Handler, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// Undecodable entries can never succeed; drop them.
		t.drop(ctx, name, raw)
		t.log.Error().Err(err).Str("queue", name).Msg("discarding malformed message")
		return
	}

	if opts := t.options(name); opts.TTL > 0 && time.Since(env.SentAt) > opts.TTL {
		t.drop(ctx, name, raw)
		metrics.MessagesConsumedTotal.WithLabelValues(name, "expired").Inc()
		t.log.Debug().Str("queue", name).Str("message_id", env.ID).Msg("message expired")
		return
	}

	env.Deliveries++
	deadline := float64(time.Now().Add(t.visibility).UnixMilli())
	if err := t.client.ZAdd(ctx, inflightSet(name), redis.Z{Score: deadline, Member: raw}).Err(); err != nil {
		t.log.Warn().Err(err).Str("queue", name).Str("message_id", env.ID).Msg("in-flight tracking failed")
	}

	msg := Message{ID: env.ID, Type: env.Type, Body: env.Body, SentAt: env.SentAt, Deliveries: env.Deliveries}
	if err := h(ctx, msg); err != nil {
		// Leave the entry on the processing list; the reaper requeues it
		// once the visibility deadline passes.
		metrics.MessagesConsumedTotal.WithLabelValues(name, "requeued").Inc()
		t.log.Error().Err(err).
			Str("queue", name).
			Str("message_id", env.ID).
			Int64("deliveries", env.Deliveries).
			Msg("handler failed, message will be redelivered")
		return
	}

	t.drop(ctx, name, raw)
	metrics.MessagesConsumedTotal.WithLabelValues(name, "acked").Inc()
	t.log.Debug().Str("queue", name).Str("message_id", env.ID).Msg("acknowledged")
}

// drop removes a message from the processing list and the in-flight set.
func (t *PollTransport) drop(ctx context.Context, name, raw string) {
	pipe := t.client.TxPipeline()
	pipe.LRem(ctx, processingList(name), 1, raw)
	pipe.ZRem(ctx, inflightSet(name), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		t.log.Warn().Err(err).Str("queue", name).Msg("ack cleanup failed")
	}
}

// reapLoop returns in-flight messages whose visibility deadline passed.
func (t *PollTransport) reapLoop(ctx context.Context, name string) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reap(ctx, name)
		}
	}
}

func (t *PollTransport) reap(ctx context.Context, name string) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	expired, err := t.client.ZRangeByScore(ctx, inflightSet(name), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil || len(expired) == 0 {
		return
	}

	for _, raw := range expired {
		// Claim the entry; a concurrent reaper that lost the race skips it.
		removed, err := t.client.ZRem(ctx, inflightSet(name), raw).Result()
		if err != nil || removed == 0 {
			continue
		}
		t.client.LRem(ctx, processingList(name), 1, raw)

		var env envelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil {
			continue
		}
		env.Deliveries++

		requeued, err := json.Marshal(env)
		if err != nil {
			continue
		}

		if env.Deliveries > t.maxDeliveries {
			if err := t.client.LPush(ctx, DeadLetterQueue(name), requeued).Err(); err != nil {
				t.log.Error().Err(err).Str("queue", name).Str("message_id", env.ID).Msg("dead-letter push failed")
				continue
			}
			metrics.MessagesDeadLetteredTotal.WithLabelValues(name).Inc()
			t.log.Warn().
				Str("queue", name).
				Str("message_id", env.ID).
				Int64("deliveries", env.Deliveries).
				Msg("delivery budget exhausted, message dead-lettered")
			continue
		}

		if err := t.client.LPush(ctx, name, requeued).Err(); err != nil {
			t.log.Error().Err(err).Str("queue", name).Str("message_id", env.ID).Msg("requeue failed")
			continue
		}
		t.log.Info().
			Str("queue", name).
			Str("message_id", env.ID).
			Int64("deliveries", env.Deliveries).
			Msg("visibility deadline passed, message requeued")
	}
}

func (t *PollTransport) Stats(ctx context.Context, name string) (Stats, error) {
	depth, err := t.client.LLen(ctx, name).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("stats %s: %w", name, err)
	}
	metrics.QueueDepth.WithLabelValues(name).Set(float64(depth))
	return Stats{Queue: name, Messages: depth, Consumers: t.consumers.Load()}, nil
}

func (t *PollTransport) Close() error {
	return t.client.Close()
}

func (t *PollTransport) options(name string) DeclareOptions {
	opts, _ := t.lookupOptions(name)
	return opts
}

func (t *PollTransport) lookupOptions(name string) (DeclareOptions, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	opts, ok := t.declared[name]
	return opts, ok
}

// newMessageID builds a sortable, collision-resistant message id from the
// current time and a random suffix.
func newMessageID() string {
	return fmt.Sprintf("%d-%06d", time.Now().UnixNano(), rand.Intn(1000000))
}
