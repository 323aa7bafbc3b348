package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/scanpay-lab/backend/config"
	"github.com/scanpay-lab/backend/pkg/pubsub"
)

type publisher struct {
	producer sarama.SyncProducer
}

// NewPublisher opens a synchronous producer which waits for every in-sync
// replica. Messages with the same key go to the same partition.
func NewPublisher(cfg config.KafkaConfigs) (*publisher, error) {
	brokers := strings.Split(cfg.Addr, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("connect kafka %s: %w", cfg.Addr, err)
	}

	return &publisher{producer: producer}, nil
}

func (p *publisher) Stop(context.Context) error {
	return p.producer.Close()
}

func (p *publisher) Publish(_ context.Context, topic string, pack *pubsub.Pack) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(pack.Msg),
		Timestamp: time.Now(),
	}
	if len(pack.Key) > 0 {
		msg.Key = sarama.ByteEncoder(pack.Key)
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}
