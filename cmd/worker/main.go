package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/fastsns/sns-backend/internal/alarms"
	"github.com/fastsns/sns-backend/internal/users"
	"github.com/fastsns/sns-backend/pkg/config"
	"github.com/fastsns/sns-backend/pkg/db"
	"github.com/fastsns/sns-backend/pkg/instance"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/metrics"
	"github.com/fastsns/sns-backend/pkg/migrate"
	"github.com/fastsns/sns-backend/pkg/outbox/idempotency"
	"github.com/fastsns/sns-backend/pkg/pubsub"
	"github.com/fastsns/sns-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	alarmMetrics := metrics.NewAlarmMetrics(nil)
	connRegistry := alarms.NewRegistry()
	dispatcher, err := alarms.NewDispatcher(connRegistry, alarmMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	cachedUsers := users.NewCachedRepository(users.NewRepository(dbClient.DB()), redisClient, logg)

	consumer, err := alarms.NewConsumer(
		alarms.NewRepository(dbClient.DB()),
		cachedUsers,
		pubsubClient.AlarmSubscription(),
		idempotencyManager,
		dispatcher,
		alarmMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create alarm consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting alarm worker")

	runErr := service.Run(ctx)
	if closeErr := service.Close(); closeErr != nil {
		logg.Error(ctx, "error closing worker dependencies", closeErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(ctx, "alarm worker stopped unexpectedly", runErr)
		os.Exit(1)
	}

	logg.Info(ctx, "alarm worker shutting down gracefully")
}
