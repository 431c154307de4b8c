// Package kafka publishes order lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/phenrril/ordercore/internal/domain"
)

// Writer is the part of *kafkago.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Publisher struct {
	w Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return NewPublisherWithWriter(&kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	})
}

func NewPublisherWithWriter(w Writer) *Publisher { return &Publisher{w: w} }

// Publish writes ev keyed by order id, so every event of an order lands on
// the same partition in commit order. The trace context travels in headers.
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msg := kafkago.Message{
		Key:     []byte(ev.OrderID.String()),
		Value:   payload,
		Headers: []kafkago.Header{{Key: "event_type", Value: []byte(ev.Type)}},
	}
	for k, v := range carrier {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
