package lib

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

func GetKafkaProducerConfig(broker, clientID string) *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers": broker,
		"client.id":         clientID,
		"acks":              "all",
	}
}

// NewKafkaProducer starts a producer and logs failed deliveries from its
// event channel until the producer is closed.
func NewKafkaProducer(broker, clientID string, logger *logrus.Logger) (*kafka.Producer, error) {
	p, err := kafka.NewProducer(GetKafkaProducerConfig(broker, clientID))
	if err != nil {
		return nil, err
	}
	go func() {
		for e := range p.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					logger.WithError(ev.TopicPartition.Error).Warn("kafka delivery failed")
				}
			case kafka.Error:
				logger.WithError(ev).Error("kafka producer error")
			}
		}
	}()
	return p, nil
}

func KafkaCreateTopics(ctx context.Context, broker string, topics ...string) ([]kafka.TopicResult, error) {
	a, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return nil, err
	}
	defer a.Close()
	topicsDef := []kafka.TopicSpecification{}
	for _, topic := range topics {
		topicsDef = append(topicsDef, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     10,
			ReplicationFactor: 1,
		})
	}
	return a.CreateTopics(ctx, topicsDef)
}
