package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homly-notify/internal/storage"
)

type countingJob struct {
	runs   atomic.Int32
	period time.Duration
	panics bool
}

func (j *countingJob) Run(ctx context.Context) {
	j.runs.Add(1)
	if j.panics {
		panic("job failure")
	}
}
func (j *countingJob) DelayTime() time.Duration  { return 0 }
func (j *countingJob) PeriodTime() time.Duration { return j.period }
func (j *countingJob) Name() string              { return "counting" }

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestScheduler_RunsPeriodically(t *testing.T) {
	s := NewScheduler(quietLogger())
	job := &countingJob{period: 10 * time.Millisecond}
	s.AddJob(job)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return job.runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	after := job.runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, job.runs.Load(), "no runs after Stop")
}

func TestScheduler_SurvivesPanics(t *testing.T) {
	s := NewScheduler(quietLogger())
	job := &countingJob{period: 5 * time.Millisecond, panics: true}
	s.AddJob(job)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
}

func TestScheduler_StartValidation(t *testing.T) {
	s := NewScheduler(quietLogger())
	s.AddJob(&countingJob{period: 0})
	assert.Error(t, s.Start())

	s = NewScheduler(quietLogger())
	s.AddJob(&countingJob{period: time.Hour})
	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second Start is rejected")
	require.NoError(t, s.Stop())
}

type failingDeleteRepo struct {
	storage.MockRepository
}

func (r *failingDeleteRepo) DeleteNotificationsBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestPruneHistoryJob(t *testing.T) {
	repo := &storage.MockRepository{}
	ctx := context.Background()
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, 2 * time.Hour} {
		require.NoError(t, repo.SaveNotification(ctx, &storage.Notification{
			Kind:      storage.NotificationKindOrder,
			Status:    storage.NotificationStatusSuccess,
			CreatedAt: now.Add(-age),
		}))
	}

	logger, hook := test.NewNullLogger()
	job := NewPruneHistoryJob(repo, 30*24*time.Hour, time.Minute, time.Hour, logger)
	job.now = func() time.Time { return now }

	job.Run(ctx)

	assert.Len(t, repo.Saved(), 1)
	if assert.NotNil(t, hook.LastEntry()) {
		assert.Equal(t, int64(2), hook.LastEntry().Data["deleted"])
	}
	assert.Equal(t, time.Minute, job.DelayTime())
	assert.Equal(t, time.Hour, job.PeriodTime())
}

func TestPruneHistoryJob_LogsFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	job := NewPruneHistoryJob(&failingDeleteRepo{}, time.Hour, 0, time.Hour, logger)

	job.Run(context.Background())

	if assert.NotNil(t, hook.LastEntry()) {
		assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	}
}
