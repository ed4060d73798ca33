package boot

import (
	"context"
	"sync"
	"ticketing/src/checkout"
	"ticketing/src/common"
	"ticketing/src/config"
	"ticketing/src/lib"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"
)

// InitBroker starts the queue consumers. Wait on the result after
// cancelling ctx.
func InitBroker(ctx context.Context, cfg *config.Config, awsCfg func() (aws.Config, error), orch *checkout.Orchestrator, logger *logrus.Logger) *sync.WaitGroup {
	if cfg.PaymentsQueue == "" {
		return &sync.WaitGroup{}
	}
	ac, err := awsCfg()
	if err != nil {
		logger.WithError(err).Error("aws config unavailable, payment results are not consumed")
		return &sync.WaitGroup{}
	}
	return common.SQSConsumers(ctx, lib.AWSGetSQSClient(ac), cfg.PaymentsQueue, orch, logger)
}

// AWSConfigLoader loads the shared aws config once, on first use.
func AWSConfigLoader(ctx context.Context, cfg *config.Config) func() (aws.Config, error) {
	return sync.OnceValues(func() (aws.Config, error) {
		return lib.AWSConfig(ctx, cfg.AWSRoleArn)
	})
}
