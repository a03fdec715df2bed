package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"homly-notify/internal/storage"
)

// PruneHistoryJob deletes notification history older than maxAge.
type PruneHistoryJob struct {
	repository storage.Repository
	maxAge     time.Duration
	delay      time.Duration
	period     time.Duration
	logger     *logrus.Logger
	now        func() time.Time
}

func NewPruneHistoryJob(repository storage.Repository, maxAge, delay, period time.Duration, logger *logrus.Logger) *PruneHistoryJob {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PruneHistoryJob{
		repository: repository,
		maxAge:     maxAge,
		delay:      delay,
		period:     period,
		logger:     logger,
		now:        time.Now,
	}
}

func (j *PruneHistoryJob) Run(ctx context.Context) {
	cutoff := j.now().Add(-j.maxAge)
	log := j.logger.WithFields(logrus.Fields{
		"job":    j.Name(),
		"cutoff": cutoff,
	})

	deleted, err := j.repository.DeleteNotificationsBefore(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("failed to prune notification history")
		return
	}
	if deleted > 0 {
		log.WithField("deleted", deleted).Info("notification history pruned")
	}
}

func (j *PruneHistoryJob) DelayTime() time.Duration  { return j.delay }
func (j *PruneHistoryJob) PeriodTime() time.Duration { return j.period }
func (j *PruneHistoryJob) Name() string              { return "prune_notification_history" }
