package content

import (
	"context"

	"github.com/rotisserie/eris"
)

// SyncJob runs the reconciler on a cron schedule.
type SyncJob struct {
	reconciler *Reconciler
	schedule   string
}

// NewSyncJob wraps the reconciler as a scheduled job.
func NewSyncJob(reconciler *Reconciler, schedule string) (*SyncJob, error) {
	if reconciler == nil {
		return nil, eris.New("reconciler is required")
	}
	if schedule == "" {
		return nil, eris.New("schedule is required")
	}

	return &SyncJob{reconciler: reconciler, schedule: schedule}, nil
}

// Name identifies the job in scheduler logs.
func (j *SyncJob) Name() string {
	return "hierarchy-sync"
}

// Schedule returns the configured cron expression.
func (j *SyncJob) Schedule() string {
	return j.schedule
}

// Run executes one reconciliation pass. An already-running pass is not an
// error here; the scheduler just tried too early.
func (j *SyncJob) Run(ctx context.Context) error {
	if err := j.reconciler.Run(ctx); err != nil {
		if eris.Is(err, ErrReconcileInProgress) {
			return nil
		}
		return err
	}
	return nil
}
