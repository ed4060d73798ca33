package aws

import (
	"context"
	"strings"
	"ticketing/src/types"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sirupsen/logrus"
)

type SQSAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSConsumer long-polls a queue and hands every body to handler. A
// message is deleted only after handler returns nil, so failures are
// redelivered once the visibility timeout passes.
type SQSConsumer struct {
	Name    string
	client  SQSAPI
	handler types.Handler
	logger  *logrus.Logger
	// WaitTime is the long-poll duration in seconds.
	WaitTime int32
	// Backoff is the pause after a failed receive.
	Backoff time.Duration
}

func NewSQSConsumer(queue string, client SQSAPI, handler types.Handler, logger *logrus.Logger) *SQSConsumer {
	return &SQSConsumer{
		Name:     queue,
		client:   client,
		handler:  handler,
		logger:   logger,
		WaitTime: 20,
		Backoff:  5 * time.Second,
	}
}

// Listen blocks until ctx is cancelled.
func (s *SQSConsumer) Listen(ctx context.Context) error {
	qurl, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(s.Name),
	})
	if err != nil {
		return err
	}
	log := s.logger.WithField("queue", s.Name)
	log.Info("listening for messages")
	for {
		if ctx.Err() != nil {
			return nil
		}
		output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            qurl.QueueUrl,
			WaitTimeSeconds:     s.WaitTime,
			MaxNumberOfMessages: 10,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.WithError(err).Warn("error receiving messages")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.Backoff):
			}
			continue
		}
		for i := range output.Messages {
			s.handle(ctx, qurl.QueueUrl, &output.Messages[i])
		}
	}
}

func (s *SQSConsumer) handle(ctx context.Context, qurl *string, m *sqstypes.Message) {
	if m.Body == nil {
		return
	}
	body := strings.Clone(*m.Body)
	log := s.logger.WithField("queue", s.Name)
	if m.MessageId != nil {
		log = log.WithField("message_id", *m.MessageId)
	}
	if err := s.handler(ctx, body); err != nil {
		log.WithError(err).Warn("message handler failed, leaving message for redelivery")
		return
	}
	if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      qurl,
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		log.WithError(err).Warn("error deleting message from queue")
	}
}
