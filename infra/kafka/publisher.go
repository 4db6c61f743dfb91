package kafka

import (
	"context"
	"fmt"
)

const (
	ClientSarama  = "sarama"
	ClientKafkaGo = "kafka-go"
)

// Publisher is what the broadcaster needs from a broker client.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

var (
	_ Publisher = (*Producer)(nil)
	_ Publisher = (*SaramaProducer)(nil)
)

// NewPublisher builds the client named by client.
func NewPublisher(client string, brokers []string, topic string) (Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	switch client {
	case ClientSarama:
		return NewSaramaProducer(brokers, topic)
	case ClientKafkaGo:
		return NewProducer(brokers, topic), nil
	default:
		return nil, fmt.Errorf("kafka: unknown client %q", client)
	}
}
