package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fastsns/sns-backend/api/controllers"
	"github.com/fastsns/sns-backend/api/routes"
	"github.com/fastsns/sns-backend/internal/alarms"
	"github.com/fastsns/sns-backend/internal/users"
	"github.com/fastsns/sns-backend/pkg/config"
	"github.com/fastsns/sns-backend/pkg/db"
	"github.com/fastsns/sns-backend/pkg/logger"
	"github.com/fastsns/sns-backend/pkg/metrics"
	"github.com/fastsns/sns-backend/pkg/migrate"
	"github.com/fastsns/sns-backend/pkg/outbox"
	"github.com/fastsns/sns-backend/pkg/outbox/idempotency"
	"github.com/fastsns/sns-backend/pkg/pubsub"
	"github.com/fastsns/sns-backend/pkg/redis"
)

const shutdownGrace = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	alarmMetrics := metrics.NewAlarmMetrics(promRegistry)

	connRegistry := alarms.NewRegistry()
	dispatcher, err := alarms.NewDispatcher(connRegistry, alarmMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbClient.DB())
	cachedUsers := users.NewCachedRepository(usersRepo, redisClient, logg)

	alarmRepo := alarms.NewRepository(dbClient.DB())
	alarmService, err := alarms.NewService(alarmRepo, cachedUsers, connRegistry, dispatcher, alarmMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create alarm service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	producer, err := alarms.NewProducer(dbClient, cachedUsers, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create alarm producer", err)
		os.Exit(1)
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	// The consumer runs in-process so delivered events reach the live
	// connections this replica holds. Events for users connected elsewhere
	// are still persisted here and no-op on dispatch.
	consumer, err := alarms.NewConsumer(
		alarmRepo,
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

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			AlarmService:  alarmService,
			AlarmProducer: producer,
			UsersRepo:     cachedUsers,
			Registry:      promRegistry,
			Pingers: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"pubsub":   pubsubClient,
			},
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	defer cancelConsumer()
	go func() {
		if err := consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "alarm consumer stopped unexpectedly", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}

	logg.Info(ctx, "api server stopped")
}
