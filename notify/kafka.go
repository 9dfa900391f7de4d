package notify

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/rbaliyan/evolve/codec"
)

// KafkaNotifier produces changes to a Kafka topic, keyed by schema name so
// all changes of one schema land in the same partition in order.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	codec    codec.Codec
}

// KafkaOption configures KafkaNotifier.
type KafkaOption func(*KafkaNotifier)

// WithTopic sets the topic (default: "evolve.changes").
func WithTopic(topic string) KafkaOption {
	return func(k *KafkaNotifier) {
		k.topic = topic
	}
}

// WithKafkaCodec sets the payload codec (default: JSON).
func WithKafkaCodec(c codec.Codec) KafkaOption {
	return func(k *KafkaNotifier) {
		if c != nil {
			k.codec = c
		}
	}
}

// NewKafkaNotifier creates a notifier producing through producer.
// The producer is owned by the caller.
func NewKafkaNotifier(producer sarama.SyncProducer, opts ...KafkaOption) *KafkaNotifier {
	k := &KafkaNotifier{
		producer: producer,
		topic:    "evolve.changes",
		codec:    codec.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Notify produces c and waits for the broker acknowledgement.
func (k *KafkaNotifier) Notify(ctx context.Context, c Change) error {
	data, err := k.codec.Encode(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(c.Name),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("Content-Type"), Value: []byte(k.codec.ContentType())},
			{Key: []byte("Evolve-Kind"), Value: []byte(c.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("produce change: %w", err)
	}
	return nil
}

// Compile-time check that KafkaNotifier implements Notifier.
var _ Notifier = (*KafkaNotifier)(nil)
