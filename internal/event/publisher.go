package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"token_vote/internal/domain"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes VoteRecorded as JSON keyed by contract, so votes for one token stay ordered.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher waits for all in-sync replicas and compresses with snappy.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  5,
		Compression:  kafka.Snappy,
	}
	return NewKafkaPublisherWithWriter(w, topic)
}

func NewKafkaPublisherWithWriter(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("module", "kafka_publisher"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec domain.VoteRecorded) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal vote: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rec.Contract),
		Value: body,
		Headers: []kafka.Header{
			{Key: "attempt_id", Value: []byte(rec.AttemptID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return domain.NewNetworkError("kafka.write", err)
	}

	p.logger.Debug("Vote published", "topic", p.topic, "signature", rec.Signature)
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

// NopPublisher drops every vote. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.VoteRecorded) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
