package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// retention is how long notifications live before the cleanup job removes
// them. Matches the tray's usefulness window.
const retention = 24 * time.Hour

// CleanupJob deletes stale notifications on a schedule.
type CleanupJob struct {
	repo   Repository
	logger *logrus.Logger
}

// NewCleanupJob constructs the cleanup job.
func NewCleanupJob(repo Repository, logger *logrus.Logger) (*CleanupJob, error) {
	if repo == nil {
		return nil, eris.New("notification repository is required")
	}

	return &CleanupJob{repo: repo, logger: logger}, nil
}

// Name identifies the job in scheduler logs.
func (j *CleanupJob) Name() string {
	return "notification-cleanup"
}

// Schedule runs the cleanup hourly.
func (j *CleanupJob) Schedule() string {
	return "@hourly"
}

// Run deletes notifications older than the retention window.
func (j *CleanupJob) Run(ctx context.Context) error {
	deleted, err := j.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return err
	}

	if j.logger != nil && deleted > 0 {
		j.logger.WithField("deleted", deleted).Info("cleaned up old notifications")
	}

	return nil
}
