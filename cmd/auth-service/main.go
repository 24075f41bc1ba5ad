// Auth service: registration, login, session-token issuance, and the user
// directory. Listens on PORT (default 3002).
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chronoworks/timesheet-system/internal/api"
	"github.com/chronoworks/timesheet-system/internal/api/handler"
	"github.com/chronoworks/timesheet-system/internal/core/service"
	"github.com/chronoworks/timesheet-system/internal/infrastructure/config"
	"github.com/chronoworks/timesheet-system/internal/infrastructure/db/mongo"
	"github.com/chronoworks/timesheet-system/internal/infrastructure/queue"
	"github.com/chronoworks/timesheet-system/pkg/logger"
)

const defaultPort = "3002"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}
	log := logger.Init(logger.Options{Service: "auth-service", Level: cfg.LogLevel, Pretty: cfg.Env == "development"})

	client, db, err := mongo.ConnectWithRetry(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	}, cfg.Queue.RetryCount, cfg.Queue.RetryDelay, log)
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb unavailable")
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	userRepo := mongo.NewUserRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("user index creation failed")
	}

	// The broker is optional: registration events are best-effort, so a
	// dead broker degrades to log-and-skip publishing.
	transport, err := queue.Connect(ctx, cfg.Queue.Transport, queue.Config{
		Addr:          cfg.Queue.RedisAddr,
		DB:            cfg.Queue.RedisDB,
		Visibility:    cfg.Queue.Visibility,
		MaxDeliveries: cfg.Queue.MaxDeliveries,
	}, cfg.Queue.RetryCount, cfg.Queue.RetryDelay, log)
	if err != nil {
		log.Error().Err(err).Msg("queue unavailable, events will be skipped")
	}

	publisher := queue.NewPublisher(transport, log)
	if transport != nil {
		defer func() { _ = transport.Close() }()
		if err := publisher.DeclareQueues(ctx, queue.DeclareOptions{
			TTL:       cfg.Queue.MessageTTL,
			MaxLength: cfg.Queue.MaxLength,
		}); err != nil {
			log.Error().Err(err).Msg("queue declaration failed")
		}
	}

	authService := service.NewAuthService(userRepo, publisher, cfg.JWTSecret, cfg.TokenTTL, log)
	e := api.NewAuthRouter(handler.NewAuthHandler(authService), authService, log)

	go func() {
		addr := ":" + cfg.PortOr(defaultPort)
		log.Info().Str("addr", addr).Msg("auth service listening")
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
