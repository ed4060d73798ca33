package lib

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var scheduler gocron.Scheduler

func NewScheduler(s gocron.Scheduler) {
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	scheduler = sched
	return sched, nil
}

// CreateCronJob runs task every interval without overlapping runs. The
// scheduler passes the job context as the first argument.
func CreateCronJob(sched gocron.Scheduler, name string, interval time.Duration, task func(ctx context.Context) error, logger *logrus.Logger) (string, error) {
	j, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRunsWithError(func(jobID uuid.UUID, jobName string, err error) {
				logger.WithError(err).WithField("job", jobName).Error("scheduled job failed")
			}),
		),
	)
	if err != nil {
		return "", err
	}
	return j.ID().String(), nil
}
