package boot

import (
	"context"
	"fmt"
	"ticketing/src/config"
	"ticketing/src/lib"
	"ticketing/src/notify"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"
)

// NewBackend builds the delivery backend named by NOTIFIER_DRIVER. awsCfg
// is only read for the sqs, ses and sns drivers.
func NewBackend(ctx context.Context, cfg *config.Config, awsCfg func() (aws.Config, error), logger *logrus.Logger) (notify.Backend, func(), error) {
	noop := func() {}
	switch cfg.NotifierDriver {
	case "", "log":
		return notify.LogBackend{Logger: logger}, noop, nil
	case "smtp":
		client, err := lib.NewSMTPClient(lib.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
		if err != nil {
			return nil, noop, err
		}
		return notify.SMTPBackend{Client: client}, noop, nil
	case "kafka":
		if _, err := lib.KafkaCreateTopics(ctx, cfg.KafkaBroker, cfg.KafkaTopic); err != nil {
			logger.WithError(err).Warn("could not create kafka topic")
		}
		producer, err := lib.NewKafkaProducer(cfg.KafkaBroker, "ticketing-notifications", logger)
		if err != nil {
			return nil, noop, err
		}
		return notify.KafkaBackend{Producer: producer, Topic: cfg.KafkaTopic}, func() {
			producer.Flush(5000)
			producer.Close()
		}, nil
	case "sqs", "ses", "sns":
		ac, err := awsCfg()
		if err != nil {
			return nil, noop, err
		}
		switch cfg.NotifierDriver {
		case "sqs":
			return notify.SQSBackend{Client: lib.AWSGetSQSClient(ac), QueueURL: cfg.SQSQueueURL}, noop, nil
		case "ses":
			return notify.SESBackend{Client: lib.AWSGetSESClient(ac)}, noop, nil
		default:
			return notify.SNSBackend{Client: lib.AWSGetSNSClient(ac), TopicArn: cfg.SNSTopicArn}, noop, nil
		}
	}
	return nil, noop, fmt.Errorf("unknown notifier driver %q", cfg.NotifierDriver)
}

// InitNotifier wires the backend behind a dispatcher. The returned func
// drains queued messages and releases the backend.
func InitNotifier(ctx context.Context, cfg *config.Config, awsCfg func() (aws.Config, error), logger *logrus.Logger) (notify.Notifier, func()) {
	backend, closeBackend, err := NewBackend(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.WithError(err).WithField("driver", cfg.NotifierDriver).Error("notifier unavailable, falling back to log")
		backend, closeBackend = notify.LogBackend{Logger: logger}, func() {}
	}
	d := notify.NewDispatcher(backend, logger, notify.Options{
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
	return d, func() {
		d.Close()
		closeBackend()
	}
}
