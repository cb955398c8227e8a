package content

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TagAdminRepository defines the curation operations for tags and tag groups.
type TagAdminRepository interface {
	CreateGroup(ctx context.Context, name, description string, order int) (*TagGroup, error)
	ListGroups(ctx context.Context) ([]TagGroup, error)
	UpdateGroup(ctx context.Context, id uint, name, description string, order int) (*TagGroup, error)
	DeleteGroup(ctx context.Context, id uint) error
	AssignTag(ctx context.Context, tagID uint, groupID *uint) error
}

// GormTagAdminRepository persists tag curation using a Gorm connection.
type GormTagAdminRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ TagAdminRepository = (*GormTagAdminRepository)(nil)

// NewTagAdminRepository constructs a Gorm-backed tag curation repository.
func NewTagAdminRepository(db *gorm.DB, logger *logrus.Logger) (*GormTagAdminRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormTagAdminRepository{db: db, logger: logger}, nil
}

// CreateGroup stores a new tag group.
func (r *GormTagAdminRepository) CreateGroup(ctx context.Context, name, description string, order int) (*TagGroup, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, eris.New("tag group name is required")
	}

	group := &TagGroup{Name: trimmed, Description: description, Order: order}
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		r.logError(logrus.Fields{"name": trimmed}, err, "creating tag group")
		return nil, eris.Wrapf(err, "creating tag group: %s", trimmed)
	}

	return group, nil
}

// ListGroups returns every tag group in display order.
func (r *GormTagAdminRepository) ListGroups(ctx context.Context) ([]TagGroup, error) {
	var groups []TagGroup
	err := r.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&groups).Error
	if err != nil {
		r.logError(nil, err, "listing tag groups")
		return nil, eris.Wrap(err, "listing tag groups")
	}

	return groups, nil
}

// UpdateGroup updates a tag group's descriptive fields.
func (r *GormTagAdminRepository) UpdateGroup(ctx context.Context, id uint, name, description string, order int) (*TagGroup, error) {
	result := r.db.WithContext(ctx).Model(&TagGroup{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "description": description, "sort_order": order})
	if result.Error != nil {
		r.logError(logrus.Fields{"tag_group_id": id}, result.Error, "updating tag group")
		return nil, eris.Wrapf(result.Error, "updating tag group: %d", id)
	}
	if result.RowsAffected == 0 {
		return nil, eris.Wrapf(ErrNotFound, "tag group %d", id)
	}

	var group TagGroup
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, eris.Wrapf(err, "fetching tag group: %d", id)
	}

	return &group, nil
}

// DeleteGroup removes a tag group and detaches its tags.
func (r *GormTagAdminRepository) DeleteGroup(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&Tag{}).Where("tag_group_id = ?", id).
			Update("tag_group_id", nil).Error
		if err != nil {
			return eris.Wrapf(err, "detaching tags from group %d", id)
		}

		result := tx.Unscoped().Delete(&TagGroup{}, id)
		if result.Error != nil {
			r.logError(logrus.Fields{"tag_group_id": id}, result.Error, "deleting tag group")
			return eris.Wrapf(result.Error, "deleting tag group: %d", id)
		}
		if result.RowsAffected == 0 {
			return eris.Wrapf(ErrNotFound, "tag group %d", id)
		}

		return nil
	})
}

// AssignTag moves a tag into a group, or out of any group when groupID is nil.
func (r *GormTagAdminRepository) AssignTag(ctx context.Context, tagID uint, groupID *uint) error {
	result := r.db.WithContext(ctx).Model(&Tag{}).Where("id = ?", tagID).
		Update("tag_group_id", groupID)
	if result.Error != nil {
		r.logError(logrus.Fields{"tag_id": tagID}, result.Error, "assigning tag to group")
		return eris.Wrapf(result.Error, "assigning tag %d", tagID)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrNotFound, "tag %d", tagID)
	}

	return nil
}

func (r *GormTagAdminRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
