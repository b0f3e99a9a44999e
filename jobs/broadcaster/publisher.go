package broadcaster

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
)

// Publisher delivers one outbox payload to the broker. infra/kafka.Producer
// satisfies it as well.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// SaramaPublisher publishes through a sarama SyncProducer.
type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaPublisher dials brokers with acks from all in-sync replicas.
func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "sarama: new sync producer")
	}
	return WrapSyncProducer(producer, topic), nil
}

// WrapSyncProducer adapts an existing producer.
func WrapSyncProducer(p sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: p, topic: topic}
}

func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "sarama: send to %s", p.topic)
	}
	return nil
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}
