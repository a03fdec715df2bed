package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a periodic task. Run is first called after DelayTime and then
// every PeriodTime until the scheduler stops.
type Job interface {
	Run(ctx context.Context)
	DelayTime() time.Duration
	PeriodTime() time.Duration
	Name() string
}

// Scheduler runs each job on its own goroutine.
type Scheduler struct {
	jobs    []Job
	logger  *logrus.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewScheduler(logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:   make([]Job, 0),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job. Jobs added after Start are not run.
func (s *Scheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	for _, job := range s.jobs {
		if job.PeriodTime() <= 0 {
			s.mu.Unlock()
			return fmt.Errorf("job %s: period must be positive, got %v", job.Name(), job.PeriodTime())
		}
	}
	s.started = true
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, job := range jobs {
		s.wg.Add(1)
		go s.runJob(job)
	}

	s.logger.Infof("scheduler started with %d jobs", len(jobs))
	return nil
}

// Stop cancels every job and waits for running ones to return.
func (s *Scheduler) Stop() error {
	s.logger.Info("stopping scheduler...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runJob(job Job) {
	defer s.wg.Done()

	log := s.logger.WithField("job", job.Name())
	log.Infof("job started with delay=%v, period=%v", job.DelayTime(), job.PeriodTime())

	timer := time.NewTimer(job.DelayTime())
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Info("job stopped due to context cancellation")
			return
		case <-timer.C:
			log.Debug("executing job")
			s.runOnce(log, job)
			timer.Reset(job.PeriodTime())
		}
	}
}

func (s *Scheduler) runOnce(log *logrus.Entry, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("job panicked")
		}
	}()
	job.Run(s.ctx)
}
