package common

import (
	"context"
	"sync"
	"ticketing/src/checkout"
	awslib "ticketing/src/lib/aws"

	"github.com/sirupsen/logrus"
)

// SQSConsumers starts every queue consumer and returns once they have all
// stopped after ctx is cancelled.
func SQSConsumers(ctx context.Context, client awslib.SQSAPI, paymentsQueue string, orch *checkout.Orchestrator, logger *logrus.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	if paymentsQueue == "" {
		return &wg
	}
	consumer := awslib.NewSQSConsumer(paymentsQueue, client, PaymentResultsHandler(orch, logger), logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := consumer.Listen(ctx); err != nil {
			logger.WithError(err).WithField("queue", paymentsQueue).Error("consumer stopped")
		}
	}()
	return &wg
}
