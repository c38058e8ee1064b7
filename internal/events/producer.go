// Package events publishes domain change events to Kafka.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

const writeTimeout = 2 * time.Second

var ErrNoBrokers = errors.New("kafka brokers not configured")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer messageWriter
}

// NewKafkaProducer hashes on the message key so every event for one entity
// lands on the same partition.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaProducer{writer: w}, nil
}

func (k *KafkaProducer) Publish(ctx context.Context, key, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Time: time.Now().UTC()})
}

func (k *KafkaProducer) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
