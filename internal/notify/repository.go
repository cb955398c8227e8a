package notify

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// recentLimit caps the tray listing; older notifications age out through the
// cleanup job anyway.
const recentLimit = 20

// Repository defines persistence operations for notifications.
type Repository interface {
	CreateMany(ctx context.Context, notifications []Notification) error
	ListForRecipient(ctx context.Context, recipientID uint) ([]Notification, error)
	MarkRead(ctx context.Context, id, recipientID uint) error
	MarkAllRead(ctx context.Context, recipientID uint) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormRepository persists notifications using a Gorm connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ Repository = (*GormRepository)(nil)

// NewRepository constructs a Gorm-backed notification repository.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

// CreateMany stores a batch of notifications in one insert.
func (r *GormRepository) CreateMany(ctx context.Context, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).Create(&notifications).Error; err != nil {
		r.logError(nil, err, "creating notifications")
		return eris.Wrap(err, "creating notifications")
	}

	return nil
}

// ListForRecipient returns the newest notifications for a user.
func (r *GormRepository) ListForRecipient(ctx context.Context, recipientID uint) ([]Notification, error) {
	var notifications []Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").Limit(recentLimit).
		Find(&notifications).Error
	if err != nil {
		r.logError(logrus.Fields{"recipient_id": recipientID}, err, "listing notifications")
		return nil, eris.Wrap(err, "listing notifications")
	}

	return notifications, nil
}

// MarkRead flags one notification as read. The recipient filter stops users
// from acknowledging each other's notifications.
func (r *GormRepository) MarkRead(ctx context.Context, id, recipientID uint) error {
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if result.Error != nil {
		r.logError(logrus.Fields{"notification_id": id}, result.Error, "marking notification read")
		return eris.Wrapf(result.Error, "marking notification %d read", id)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrNotFound, "notification %d", id)
	}

	return nil
}

// MarkAllRead flags every unread notification of a user as read.
func (r *GormRepository) MarkAllRead(ctx context.Context, recipientID uint) error {
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Update("read", true).Error
	if err != nil {
		r.logError(logrus.Fields{"recipient_id": recipientID}, err, "marking notifications read")
		return eris.Wrap(err, "marking notifications read")
	}

	return nil
}

// DeleteOlderThan removes notifications created before the cutoff and
// returns how many were deleted.
func (r *GormRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Unscoped().
		Where("created_at < ?", cutoff).Delete(&Notification{})
	if result.Error != nil {
		r.logError(nil, result.Error, "deleting old notifications")
		return 0, eris.Wrap(result.Error, "deleting old notifications")
	}

	return result.RowsAffected, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
