package content

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SubmissionRepository defines persistence operations for moderation records.
type SubmissionRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*Submission, error)
	ListPending(ctx context.Context) ([]Submission, error)
	ListPendingForPages(ctx context.Context, externalIDs []string) ([]Submission, error)
	ListUnpublishedForPages(ctx context.Context, externalIDs []string) ([]Submission, error)
	ListByAuthor(ctx context.Context, authorID uint) ([]Submission, error)
	Create(ctx context.Context, submission *Submission) error
	UpdateStatus(ctx context.Context, externalID string, status SubmissionStatus, comment *string) (*Submission, error)
	UpdateTitle(ctx context.Context, externalID, title string) error
	DeleteByExternalID(ctx context.Context, externalID string) error
}

// GormSubmissionRepository persists submissions using a Gorm connection.
type GormSubmissionRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ SubmissionRepository = (*GormSubmissionRepository)(nil)

// NewSubmissionRepository constructs a Gorm-backed submission repository.
func NewSubmissionRepository(db *gorm.DB, logger *logrus.Logger) (*GormSubmissionRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormSubmissionRepository{db: db, logger: logger}, nil
}

// GetByExternalID returns the submission attached to the given page.
func (r *GormSubmissionRepository) GetByExternalID(ctx context.Context, externalID string) (*Submission, error) {
	trimmed := strings.TrimSpace(externalID)
	if trimmed == "" {
		return nil, eris.New("external id is required")
	}

	var submission Submission
	err := r.db.WithContext(ctx).First(&submission, "external_id = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "submission %s", trimmed)
		}
		r.logError(logrus.Fields{"external_id": trimmed}, err, "fetching submission")
		return nil, eris.Wrapf(err, "fetching submission: %s", trimmed)
	}

	return &submission, nil
}

// ListPending returns every submission awaiting review, newest first.
func (r *GormSubmissionRepository) ListPending(ctx context.Context) ([]Submission, error) {
	var submissions []Submission
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusPendingReview).
		Order("updated_at DESC").Find(&submissions).Error
	if err != nil {
		r.logError(nil, err, "listing pending submissions")
		return nil, eris.Wrap(err, "listing pending submissions")
	}

	return submissions, nil
}

// ListPendingForPages returns pending submissions restricted to the given
// pages. Group admins see only the part of the review queue they manage.
func (r *GormSubmissionRepository) ListPendingForPages(ctx context.Context, externalIDs []string) ([]Submission, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	var submissions []Submission
	err := r.db.WithContext(ctx).
		Where("status = ? AND external_id IN ?", StatusPendingReview, externalIDs).
		Order("updated_at DESC").Find(&submissions).Error
	if err != nil {
		r.logError(nil, err, "listing pending submissions for pages")
		return nil, eris.Wrap(err, "listing pending submissions for pages")
	}

	return submissions, nil
}

// ListUnpublishedForPages returns the submissions among the given pages that
// are not yet published. Listings use it to keep pending and rejected titles
// away from readers without authority over them.
func (r *GormSubmissionRepository) ListUnpublishedForPages(ctx context.Context, externalIDs []string) ([]Submission, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	var submissions []Submission
	err := r.db.WithContext(ctx).
		Where("status <> ? AND external_id IN ?", StatusPublished, externalIDs).
		Find(&submissions).Error
	if err != nil {
		r.logError(nil, err, "listing unpublished submissions for pages")
		return nil, eris.Wrap(err, "listing unpublished submissions for pages")
	}

	return submissions, nil
}

// ListByAuthor returns every submission created by the given author.
func (r *GormSubmissionRepository) ListByAuthor(ctx context.Context, authorID uint) ([]Submission, error) {
	var submissions []Submission
	err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("updated_at DESC").Find(&submissions).Error
	if err != nil {
		r.logError(logrus.Fields{"author_id": authorID}, err, "listing submissions by author")
		return nil, eris.Wrap(err, "listing submissions by author")
	}

	return submissions, nil
}

// Create stores a new submission record.
func (r *GormSubmissionRepository) Create(ctx context.Context, submission *Submission) error {
	if submission == nil {
		return eris.New("submission is nil")
	}
	if strings.TrimSpace(submission.ExternalID) == "" {
		return eris.New("submission external id is required")
	}
	if submission.Status == "" {
		submission.Status = StatusPendingReview
	}

	if err := r.db.WithContext(ctx).Create(submission).Error; err != nil {
		r.logError(logrus.Fields{"external_id": submission.ExternalID}, err, "creating submission")
		return eris.Wrapf(err, "creating submission: %s", submission.ExternalID)
	}

	return nil
}

// UpdateStatus moves a submission to the given status and applies the
// rejection-comment rules: rejecting stores the comment, publishing clears
// it, and resubmitting leaves the previous comment untouched for audit.
func (r *GormSubmissionRepository) UpdateStatus(ctx context.Context, externalID string, status SubmissionStatus, comment *string) (*Submission, error) {
	updates := map[string]any{"status": status}
	switch status {
	case StatusRejected:
		updates["rejection_comment"] = comment
	case StatusPublished:
		updates["rejection_comment"] = nil
	}

	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("external_id = ?", externalID).Updates(updates)
	if result.Error != nil {
		r.logError(logrus.Fields{"external_id": externalID}, result.Error, "updating submission status")
		return nil, eris.Wrapf(result.Error, "updating submission status: %s", externalID)
	}
	if result.RowsAffected == 0 {
		return nil, eris.Wrapf(ErrNotFound, "submission %s", externalID)
	}

	return r.GetByExternalID(ctx, externalID)
}

// UpdateTitle keeps the submission title in sync with its page.
func (r *GormSubmissionRepository) UpdateTitle(ctx context.Context, externalID, title string) error {
	result := r.db.WithContext(ctx).Model(&Submission{}).
		Where("external_id = ?", externalID).Update("title", title)
	if result.Error != nil {
		r.logError(logrus.Fields{"external_id": externalID}, result.Error, "updating submission title")
		return eris.Wrapf(result.Error, "updating submission title: %s", externalID)
	}

	return nil
}

// DeleteByExternalID removes a submission record. A missing record is not an
// error; bulk-imported pages never had one.
func (r *GormSubmissionRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	err := r.db.WithContext(ctx).Unscoped().
		Where("external_id = ?", externalID).Delete(&Submission{}).Error
	if err != nil {
		r.logError(logrus.Fields{"external_id": externalID}, err, "deleting submission")
		return eris.Wrapf(err, "deleting submission: %s", externalID)
	}

	return nil
}

func (r *GormSubmissionRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
