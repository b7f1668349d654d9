package publish

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/model"
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// KafkaPublisher sends encoded summaries to a Kafka topic, keyed by run id.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher creates a synchronous producer for the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher: brokers and topic are required")
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, ProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	log.Printf("Connected to Kafka brokers %v", cfg.Brokers)
	return NewKafkaPublisherWithProducer(producer, cfg.Topic), nil
}

// ProducerConfig returns the producer settings used for summaries.
func ProducerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Producer.RequiredAcks = sarama.WaitForAll
	c.Producer.Retry.Max = 5
	c.Producer.Return.Successes = true
	return c
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends one summary and waits for the broker acknowledgement.
func (k *KafkaPublisher) Publish(ctx context.Context, s model.GroupSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(s.RunID),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send summary to %s: %w", k.topic, err)
	}
	log.Debugf("Summary for %s sent to %s[%d]@%d", s.Peer, k.topic, partition, offset)
	return nil
}

// Close shuts the producer down.
func (k *KafkaPublisher) Close() error {
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
