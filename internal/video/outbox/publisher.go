package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/reelwork/internal/metrics"
	"github.com/romariotrain/reelwork/internal/video/kafka"
	"github.com/romariotrain/reelwork/internal/video/repository"
)

// EventProducer is the broker side of the publisher.
type EventProducer interface {
	PublishBatch(ctx context.Context, msgs []kafka.Message) error
}

// Publisher реализует Outbox паттерн для надёжной публикации событий модерации в Kafka.
// Гарантирует at-least-once delivery семантику.
type Publisher struct {
	store     repository.OutboxStore
	producer  EventProducer
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

// PublisherConfig содержит конфигурацию для создания Publisher
type PublisherConfig struct {
	Store     repository.OutboxStore
	Producer  EventProducer
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		store:     cfg.Store,
		producer:  cfg.Producer,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		logger:    cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start опрашивает outbox каждые interval и публикует pending события.
// Блокирует до отмены контекста. Ошибки отдельных событий не останавливают цикл.
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Err(ctx.Err()).Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if _, err := p.PublishPending(ctx); err != nil {
				p.logger.Error().Err(err).Msg("failed to publish batch")
			}
		}
	}
}

// PublishPending publishes one batch and returns how many events were marked processed.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	records, err := p.store.GetPending(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending records: %w", err)
	}
	if len(records) == 0 {
		p.logger.Debug().Msg("no pending events to publish")
		return 0, nil
	}

	var published, failed, marked int
	blocked := make(map[string]bool) // aggregate ids with an unpublished earlier event

	for _, record := range records {
		if blocked[record.AggregateID] {
			failed++
			continue
		}

		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("aggregate_id", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		msg := kafka.Message{
			Key:   record.AggregateID, // порядок событий одной записи
			Value: record.Payload,
			Headers: map[string]string{
				"event_id":   record.EventID,
				"event_type": record.EventType,
			},
		}
		if err := p.producer.PublishBatch(ctx, []kafka.Message{msg}); err != nil {
			eventLogger.Error().Err(err).Msg("failed to publish event to kafka")
			failed++
			blocked[record.AggregateID] = true
			continue // попробуем в следующий раз
		}
		published++

		if err := p.store.MarkProcessed(ctx, record.ID); err != nil {
			// Событие опубликовано, но не помечено: уйдёт повторно, consumer идемпотентен
			eventLogger.Warn().Err(err).Msg("failed to mark event as processed")
			continue
		}
		marked++
	}

	metrics.RecordOutbox("published", published)
	metrics.RecordOutbox("failed", failed)

	p.logger.Info().
		Int("total", len(records)).
		Int("published", published).
		Int("failed", failed).
		Int("marked", marked).
		Msg("batch processing completed")

	return marked, nil
}
