package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// ConnectWithRetry calls Connect with a fixed delay between attempts. Each
// failure is logged; the last error is returned once the retry budget is
// spent, so the host can decide whether to continue degraded.
func ConnectWithRetry(ctx context.Context, cfg Config, retries int, delay time.Duration, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		client, db, err := Connect(ctx, cfg)
		if err == nil {
			log.Info().Str("database", cfg.Database).Int("attempt", attempt).Msg("connected to mongodb")
			return client, db, nil
		}
		lastErr = err

		log.Error().Err(err).
			Int("attempt", attempt).
			Int("retries", retries).
			Msg("mongodb connection failed")

		if attempt < retries {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, nil, fmt.Errorf("mongo connect after %d attempts: %w", retries, lastErr)
}
