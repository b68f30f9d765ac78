package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hasanarpat/memento-mori/pkg/config"
	"github.com/hasanarpat/memento-mori/pkg/db"
	"github.com/hasanarpat/memento-mori/pkg/kafka"
	"github.com/hasanarpat/memento-mori/pkg/logger"
	"github.com/hasanarpat/memento-mori/pkg/metrics"
	"github.com/hasanarpat/memento-mori/pkg/migrate"
	"github.com/hasanarpat/memento-mori/pkg/outbox"
	"github.com/hasanarpat/memento-mori/pkg/outbox/registry"
	"github.com/hasanarpat/memento-mori/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	backend := cfg.Eventing.NormalizedBackend()
	if backend == config.EventingBackendNone {
		logg.Info(context.Background(), "eventing backend is none, nothing to publish")
		return
	}

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

	publisher, topics, err := newPublisher(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap broker", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logg.Error(context.Background(), "error closing broker client", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(topics)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Eventing:      cfg.Eventing,
		Logger:        logg,
		DB:            dbClient,
		Publisher:     publisher,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"backend": backend,
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func newPublisher(ctx context.Context, cfg *config.Config, logg *logger.Logger) (outbox.Publisher, registry.Topics, error) {
	switch cfg.Eventing.NormalizedBackend() {
	case config.EventingBackendPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, registry.Topics{}, err
		}
		return client, registry.Topics{Orders: cfg.PubSub.OrdersTopic, Domain: cfg.PubSub.DomainTopic}, nil
	case config.EventingBackendKafka:
		client, err := kafka.NewClient(cfg.Kafka, logg)
		if err != nil {
			return nil, registry.Topics{}, err
		}
		return client, registry.Topics{Orders: cfg.Kafka.OrdersTopic, Domain: cfg.Kafka.DomainTopic}, nil
	default:
		return nil, registry.Topics{}, fmt.Errorf("unsupported eventing backend %q", cfg.Eventing.Backend)
	}
}
