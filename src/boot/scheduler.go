package boot

import (
	"ticketing/src/checkout"
	"ticketing/src/common"
	"ticketing/src/config"
	"ticketing/src/lib"

	"github.com/sirupsen/logrus"
)

func InitScheduler(cfg *config.Config, orch *checkout.Orchestrator, logger *logrus.Logger) error {
	sched, err := lib.GetScheduler()
	if err != nil {
		return err
	}
	id, err := lib.CreateCronJob(sched, "expire-stale-orders", cfg.SweepInterval,
		common.ExpireStaleOrders(orch, cfg.OrderTTL, cfg.SweepBatchSize), logger)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"job_id": id, "jobs": len(sched.Jobs())}).Info("scheduler started")
	sched.Start()
	return nil
}

func StopScheduler(logger *logrus.Logger) {
	sched, err := lib.GetScheduler()
	if err != nil {
		logger.WithError(err).Error("Error retrieving Scheduler")
		return
	}
	if err := sched.Shutdown(); err != nil {
		logger.WithError(err).Error("An error has occurred while stopping Scheduler")
	}
}
