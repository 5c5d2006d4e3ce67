package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// KafkaPublisher produces events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafkago.Writer
}

// NewKafkaPublisher creates a producer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w}
}

// Publish writes every event in a single WriteMessages call.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d anomaly events: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals an Event into a Kafka message keyed by its ID.
func serializeToMessage(e Event) (kafkago.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize anomaly event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "plant", Value: []byte(e.Plant)},
			{Key: "date", Value: []byte(e.Date.String())},
			{Key: "threshold_pct", Value: []byte(strconv.FormatFloat(e.ThresholdPct, 'f', -1, 64))},
			{Key: "detected_at", Value: []byte(e.DetectedAt.Format(time.RFC3339))},
		},
	}, nil
}
