package mykafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Skotchmaster/storefront/internal/events"
)

const writeTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer forwards storefront events to a Kafka topic. It implements events.Sink.
type Producer struct {
	writer messageWriter
	topic  string
	keyFn  func() string
}

// NewProducer builds a producer for topic. keyFn supplies the message key,
// usually the signed-in user id, so one user's events stay ordered.
func NewProducer(brokers []string, topic string, keyFn func() string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
	return newProducer(w, topic, keyFn), nil
}

func newProducer(w messageWriter, topic string, keyFn func() string) *Producer {
	if keyFn == nil {
		keyFn = func() string { return "" }
	}
	return &Producer{writer: w, topic: topic, keyFn: keyFn}
}

func (p *Producer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}
	if e, ok := event.(events.Event); ok {
		msg.Headers = []kafka.Header{{Key: "event-type", Value: []byte(e.Topic)}}
		msg.Time = e.At
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, writeTimeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write to %s failed: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Publish(ctx context.Context, e events.Event) error {
	return p.PublishEvent(ctx, p.keyFn(), e)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
