// Package events ships outbox rows written by checkout to Kafka.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fsanano/inventory/internal/model"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

type OutboxSource interface {
	FetchPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns a writer without a fixed topic; each message
// carries the topic of its outbox row.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

type Publisher struct {
	source    OutboxSource
	writer    MessageWriter
	breaker   *gobreaker.CircuitBreaker[struct{}]
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewPublisher(source OutboxSource, writer MessageWriter, logger *slog.Logger) *Publisher {
	return &Publisher{
		source: source,
		writer: writer,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "kafka-outbox",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    logger,
	}
}

// Run polls the outbox until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.PublishPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.WarnContext(ctx, "outbox publish incomplete", "error", err)
			}
		}
	}
}

// PublishPending sends one batch in id order and stops at the first failure
// so events for the same order are never reordered.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	events, err := p.source.FetchPending(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, e := range events {
		msg := kafka.Message{
			Topic: e.Topic,
			Key:   []byte(e.Key),
			Value: e.Payload,
			Time:  e.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(e.EventID)},
			},
		}
		_, err := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.writer.WriteMessages(ctx, msg)
		})
		if err != nil {
			return sent, fmt.Errorf("publish event %s: %w", e.EventID, err)
		}
		if err := p.source.MarkSent(ctx, e.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
