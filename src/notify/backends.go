package notify

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

// LogBackend writes notifications to the application log.
type LogBackend struct {
	Logger *logrus.Logger
}

func (LogBackend) Name() string { return "log" }

func (b LogBackend) Deliver(ctx context.Context, m Message) error {
	b.Logger.WithContext(ctx).WithFields(logrus.Fields{
		"kind":    m.Kind,
		"to":      m.To,
		"subject": m.Subject,
	}).Info("notification")
	return nil
}

type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPBackend struct {
	Client MailSender
}

func (SMTPBackend) Name() string { return "smtp" }

func (b SMTPBackend) Deliver(ctx context.Context, m Message) error {
	msg, err := buildMsg(m)
	if err != nil {
		return err
	}
	return b.Client.DialAndSendWithContext(ctx, msg)
}

func buildMsg(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.FromName, m.From); err != nil {
		return nil, err
	}
	if err := msg.To(m.To...); err != nil {
		return nil, err
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}

type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSBackend hands messages to a mailer worker through a queue.
type SQSBackend struct {
	Client   SQSSender
	QueueURL string
}

func (SQSBackend) Name() string { return "sqs" }

func (b SQSBackend) Deliver(ctx context.Context, m Message) error {
	body, err := json.Marshal(m.JSONB())
	if err != nil {
		return err
	}
	_, err = b.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(b.QueueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

type KafkaBackend struct {
	Producer Producer
	Topic    string
}

func (KafkaBackend) Name() string { return "kafka" }

func (b KafkaBackend) Deliver(ctx context.Context, m Message) error {
	value, err := json.Marshal(m.JSONB())
	if err != nil {
		return err
	}
	topic := b.Topic
	return b.Producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(m.Kind),
		Value:          value,
	}, nil)
}
