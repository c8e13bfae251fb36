package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/nsw-incident-feed/internal/config"
	"github.com/couchcryptid/nsw-incident-feed/internal/host"
	"github.com/couchcryptid/nsw-incident-feed/internal/observability"
)

// Publisher produces entity state changes to a Kafka topic.
// It implements host.StateSink.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates an asynchronous Kafka producer for the configured
// topic. Publish never blocks the caller on the broker; delivery failures are
// reported through the completion callback.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	p := &Publisher{logger: logger, metrics: metrics}
	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   p.completed,
	}
	return p
}

// Publish serialises a state change and queues it for delivery.
func (p *Publisher) Publish(ctx context.Context, change host.StateChange) error {
	msg, err := serializeToMessage(change)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) completed(messages []kafkago.Message, err error) {
	if err == nil {
		return
	}
	p.metrics.StatePublishErrors.Add(float64(len(messages)))
	p.logger.Warn("kafka delivery failed", "messages", len(messages), "error", err)
}

// serializeToMessage marshals a StateChange into a Kafka message keyed by
// the entity id.
func serializeToMessage(change host.StateChange) (kafkago.Message, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize state change: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(change.State.EntityID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "change", Value: []byte(change.Change)},
			{Key: "emitted_at", Value: []byte(change.At.Format(time.RFC3339))},
		},
	}, nil
}
