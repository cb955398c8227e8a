package scheduler

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/robfig/cron"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// Job is a named unit of background work with a cron schedule.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// Executor runs jobs on their cron schedules. A job that is still running
// when its next tick fires is skipped, so jobs never overlap themselves.
type Executor struct {
	cron    *cron.Cron
	jobs    []Job
	running mapset.Set[string]
	mu      sync.Mutex
	logger  *logrus.Logger
}

// NewExecutor constructs an executor over the given jobs.
func NewExecutor(jobs []Job, logger *logrus.Logger) (*Executor, error) {
	for _, job := range jobs {
		if job == nil {
			return nil, eris.New("job is nil")
		}
	}

	return &Executor{
		cron:    cron.New(),
		jobs:    jobs,
		running: mapset.NewSet[string](),
		logger:  logger,
	}, nil
}

// Start registers every job with the cron runner and begins scheduling.
func (e *Executor) Start() error {
	for _, job := range e.jobs {
		job := job
		err := e.cron.AddFunc(job.Schedule(), func() {
			e.runOnce(job)
		})
		if err != nil {
			return eris.Wrapf(err, "scheduling job %s", job.Name())
		}
	}

	e.cron.Start()

	if e.logger != nil {
		e.logger.WithField("jobs", len(e.jobs)).Info("scheduler started")
	}

	return nil
}

// Stop halts scheduling. Jobs already running finish on their own.
func (e *Executor) Stop() {
	e.cron.Stop()

	if e.logger != nil {
		e.logger.Info("scheduler stopped")
	}
}

func (e *Executor) runOnce(job Job) {
	e.mu.Lock()
	if e.running.Contains(job.Name()) {
		e.mu.Unlock()
		if e.logger != nil {
			e.logger.WithField("job", job.Name()).Warn("job still running, skipping tick")
		}
		return
	}
	e.running.Add(job.Name())
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running.Remove(job.Name())
		e.mu.Unlock()
	}()

	if err := job.Run(context.Background()); err != nil {
		if e.logger != nil {
			e.logger.WithFields(logrus.Fields{
				"job":   job.Name(),
				"error": err.Error(),
			}).Error("job run failed")
		}
		return
	}
}
