// Package publish forwards newly merged press releases to a message broker.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/types"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the JSON value of every published record.
type Message struct {
	Province  string        `json:"province"`
	Article   types.Article `json:"article"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// KafkaPublisher writes one message per article, keyed by source URL so
// releases of the same page land on the same partition.
type KafkaPublisher struct {
	writer    MessageWriter
	topic     string
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewKafkaPublisher creates a publisher backed by a synchronous kafka.Writer.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewWithWriter(w, cfg.Topic, logger), nil
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w MessageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:    w,
		topic:     topic,
		batchSize: 100,
		logger:    logger.With("component", "kafka_publisher", "topic", topic),
		now:       time.Now,
	}
}

// Publish sends the rows of t for province in batches.
func (p *KafkaPublisher) Publish(ctx context.Context, province string, t types.Table) error {
	if len(t) == 0 {
		return nil
	}
	fetched := p.now().UTC()

	batch := make([]kafka.Message, 0, min(len(t), p.batchSize))
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("kafka write to %s: %w", p.topic, err)
		}
		batch = batch[:0]
		return nil
	}

	for _, a := range t {
		value, err := json.Marshal(Message{Province: province, Article: a, FetchedAt: fetched})
		if err != nil {
			return fmt.Errorf("encode %s: %w", a.SourceURL, err)
		}
		batch = append(batch, kafka.Message{
			Key:   []byte(a.SourceURL),
			Value: value,
			Time:  fetched,
			Headers: []kafka.Header{
				{Key: "province", Value: []byte(province)},
			},
		})
		if len(batch) == p.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	p.logger.Debug("published", "province", province, "articles", len(t))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
