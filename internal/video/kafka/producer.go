package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// ProducerConfig configures the moderation event producer.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int           // default 3
	RetryBackoff time.Duration // default 100ms, doubled per attempt
	WriteTimeout time.Duration // default 10s per attempt
	BatchSize    int           // default 100
	Async        bool
	Logger       zerolog.Logger
}

// Message is one keyed event. Headers carry the event type for consumers that route on it.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

type producerMetrics struct {
	MessagesPublished atomic.Int64
	MessagesFailed    atomic.Int64
	RetriesTotal      atomic.Int64
	PublishDuration   atomic.Int64 // nanoseconds, summed
}

// Metrics is a snapshot of producer counters.
type Metrics struct {
	MessagesPublished int64
	MessagesFailed    int64
	RetriesTotal      int64
	AvgPublishTime    time.Duration
}

type Producer struct {
	writer  *kafkago.Writer
	config  ProducerConfig
	logger  zerolog.Logger
	metrics producerMetrics
	closed  atomic.Bool
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	setDefaults(&cfg)

	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafkago.Hash{}, // события одной записи в одну партицию
			BatchSize:    cfg.BatchSize,
			WriteTimeout: cfg.WriteTimeout,
			RequiredAcks: kafkago.RequireAll,
			Async:        cfg.Async,
		},
		config: cfg,
		logger: cfg.Logger.With().Str("component", "kafka_producer").Str("topic", cfg.Topic).Logger(),
	}, nil
}

func validateConfig(cfg *ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka producer: brokers list is empty")
	}
	if cfg.Topic == "" {
		return errors.New("kafka producer: topic is empty")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("kafka producer: max_retries cannot be negative, got %d", cfg.MaxRetries)
	}
	if cfg.RetryBackoff < 0 {
		return fmt.Errorf("kafka producer: retry_backoff cannot be negative, got %s", cfg.RetryBackoff)
	}
	if cfg.WriteTimeout < 0 {
		return fmt.Errorf("kafka producer: write_timeout cannot be negative, got %s", cfg.WriteTimeout)
	}
	return nil
}

func setDefaults(cfg *ProducerConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
}

// Publish writes one message, retrying transient broker failures.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	return p.PublishBatch(ctx, []Message{{Key: key, Value: value}})
}

// PublishBatch writes msgs in one request. The batch succeeds or fails as a whole.
func (p *Producer) PublishBatch(ctx context.Context, msgs []Message) error {
	if p.closed.Load() {
		return errors.New("kafka publish: producer is closed")
	}
	if len(msgs) == 0 {
		return nil
	}

	out := make([]kafkago.Message, len(msgs))
	for i, m := range msgs {
		out[i] = kafkago.Message{Key: []byte(m.Key), Value: m.Value}
		for k, v := range m.Headers {
			out[i].Headers = append(out[i].Headers, kafkago.Header{Key: k, Value: []byte(v)})
		}
	}

	started := time.Now()
	backoff := p.config.RetryBackoff
	var err error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.metrics.RetriesTotal.Add(1)
			p.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying kafka publish")

			select {
			case <-ctx.Done():
				p.metrics.MessagesFailed.Add(int64(len(msgs)))
				return fmt.Errorf("kafka publish: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = p.writer.WriteMessages(ctx, out...)
		if err == nil {
			p.metrics.MessagesPublished.Add(int64(len(msgs)))
			p.metrics.PublishDuration.Add(int64(time.Since(started)))
			return nil
		}
		if !isRetriableError(err) {
			break
		}
	}

	p.metrics.MessagesFailed.Add(int64(len(msgs)))
	return fmt.Errorf("kafka publish: %w", err)
}

// isRetriableError treats unknown failures as transient; only cancellation and
// errors the broker will repeat are final.
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var kerr kafkago.Error
	if errors.As(err, &kerr) {
		return kerr.Temporary()
	}

	msg := strings.ToLower(err.Error())
	for _, final := range []string{"invalid message", "message too large", "authorization failed"} {
		if strings.Contains(msg, final) {
			return false
		}
	}
	return true
}

func (p *Producer) GetMetrics() Metrics {
	published := p.metrics.MessagesPublished.Load()
	m := Metrics{
		MessagesPublished: published,
		MessagesFailed:    p.metrics.MessagesFailed.Load(),
		RetriesTotal:      p.metrics.RetriesTotal.Load(),
	}
	if published > 0 {
		m.AvgPublishTime = time.Duration(p.metrics.PublishDuration.Load() / published)
	}
	return m
}

// HealthCheck dials the first reachable broker.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.closed.Load() {
		return errors.New("kafka health: producer is closed")
	}
	var lastErr error
	for _, broker := range p.config.Brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("kafka health: %w", lastErr)
}

func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return errors.New("kafka producer already closed")
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka close: %w", err)
	}
	return nil
}
