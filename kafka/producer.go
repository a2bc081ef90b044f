package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"pos-service/models"
)

// Producer publishes POS domain events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishOrderFulfilled emits the event for a completed checkout, keyed by
// register so one register's orders stay ordered.
func (p *Producer) PublishOrderFulfilled(event models.OrderFulfilledEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.RegisterID),
		Value: data,
	}
	return p.writer.WriteMessages(context.Background(), msg)
}

func (p *Producer) Close() {
	_ = p.writer.Close()
}
