// Notification service: drains the three event queues and performs the
// notification side effects. Listens on PORT (default 3003).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/chronoworks/timesheet-system/internal/api"
	"github.com/chronoworks/timesheet-system/internal/api/handler"
	"github.com/chronoworks/timesheet-system/internal/core/domain"
	"github.com/chronoworks/timesheet-system/internal/core/service"
	"github.com/chronoworks/timesheet-system/internal/infrastructure/config"
	"github.com/chronoworks/timesheet-system/internal/infrastructure/queue"
	"github.com/chronoworks/timesheet-system/pkg/logger"
)

const (
	defaultPort = "3003"

	// The consumer is the one process that cannot work without the broker,
	// so it waits through a larger retry budget than the producers.
	connectRetries = 10
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}
	log := logger.Init(logger.Options{Service: "notification-service", Level: cfg.LogLevel, Pretty: cfg.Env == "development"})

	transport, err := queue.Connect(ctx, cfg.Queue.Transport, queue.Config{
		Addr:          cfg.Queue.RedisAddr,
		DB:            cfg.Queue.RedisDB,
		Visibility:    cfg.Queue.Visibility,
		MaxDeliveries: cfg.Queue.MaxDeliveries,
	}, connectRetries, cfg.Queue.RetryDelay, log)
	if err != nil {
		// Keep serving /health and /stats so the degraded state is visible.
		log.Error().Err(err).Msg("queue unavailable, consumers not started")
	}

	notifier := service.NewNotificationService(log)
	if transport != nil {
		defer func() { _ = transport.Close() }()
		if err := startConsumers(ctx, transport, notifier, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("consumer startup failed")
		}
	}

	e := api.NewNotificationRouter(handler.NewNotificationHandler(transport), log)

	go func() {
		addr := ":" + cfg.PortOr(defaultPort)
		log.Info().Str("addr", addr).Msg("notification service listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}

// startConsumers declares the queues and attaches one consumer per queue.
// The three queues drain independently; within a queue, messages are
// handled one at a time in delivery order.
func startConsumers(ctx context.Context, transport queue.Transport, notifier *service.NotificationService, cfg *config.Config, log zerolog.Logger) error {
	opts := queue.DeclareOptions{TTL: cfg.Queue.MessageTTL, MaxLength: cfg.Queue.MaxLength}
	for _, name := range domain.Queues() {
		if err := transport.Declare(ctx, name, opts); err != nil {
			return err
		}
	}

	consumers := map[string]queue.Handler{
		domain.QueueTimesheetSubmitted: func(ctx context.Context, msg queue.Message) error {
			var ev domain.TimesheetEvent
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				return err
			}
			return notifier.HandleTimesheetSubmitted(ctx, ev)
		},
		domain.QueueTimesheetSaved: func(ctx context.Context, msg queue.Message) error {
			var ev domain.TimesheetEvent
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				return err
			}
			return notifier.HandleTimesheetSaved(ctx, ev)
		},
		domain.QueueUserRegistered: func(ctx context.Context, msg queue.Message) error {
			var ev domain.UserRegisteredEvent
			if err := json.Unmarshal(msg.Body, &ev); err != nil {
				return err
			}
			return notifier.HandleUserRegistered(ctx, ev)
		},
	}

	for name, h := range consumers {
		if err := transport.Consume(ctx, name, h); err != nil {
			return err
		}
		log.Info().Str("queue", name).Msg("consumer started")
	}
	return nil
}
