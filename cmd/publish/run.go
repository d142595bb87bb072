package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/romariotrain/reelwork/internal/config"
	"github.com/romariotrain/reelwork/internal/log"
	pg "github.com/romariotrain/reelwork/internal/storage/postgres"
	"github.com/romariotrain/reelwork/internal/video/kafka"
	"github.com/romariotrain/reelwork/internal/video/outbox"
)

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Service: "publish"})
	logger := log.WithComponent("publish")

	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if err := pg.Migrate(ctx, db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	defer func() {
		m := producer.GetMetrics()
		logger.Info().
			Int64("published", m.MessagesPublished).
			Int64("failed", m.MessagesFailed).
			Msg("producer totals")
		if err := producer.Close(); err != nil {
			logger.Warn().Err(err).Msg("producer close")
		}
	}()

	if err := producer.HealthCheck(ctx); err != nil {
		// брокер может подняться позже, публикация ретраится на каждом тике
		logger.Warn().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("kafka not reachable yet")
	}

	publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
		Store:     pg.NewOutboxRepo(db),
		Producer:  producer,
		Interval:  cfg.Outbox.Interval,
		BatchSize: cfg.Outbox.BatchSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("outbox publisher: %w", err)
	}

	if err := publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
