package content

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GroupRepository defines persistence operations for delegation groups and
// their memberships.
type GroupRepository interface {
	Create(ctx context.Context, name string) (*Group, error)
	GetByID(ctx context.Context, id uint) (*Group, error)
	List(ctx context.Context) ([]Group, error)
	Update(ctx context.Context, id uint, name string, managedPageExternalID *string) (*Group, error)
	Delete(ctx context.Context, id uint) error
	AddMember(ctx context.Context, groupID, userID uint, role Role) error
	RemoveMember(ctx context.Context, groupID, userID uint) error
	UpdateMemberRole(ctx context.Context, groupID, userID uint, role Role) error
	MembershipsForUser(ctx context.Context, userID uint) ([]GroupMember, error)
	GroupsByIDs(ctx context.Context, ids []uint) ([]Group, error)
	GroupsManaging(ctx context.Context, externalIDs []string) ([]Group, error)
	AdminMemberIDs(ctx context.Context, groupIDs []uint) ([]uint, error)
	AdminManagedGroups(ctx context.Context, userID uint) ([]Group, error)
}

// GormGroupRepository persists groups using a Gorm connection.
type GormGroupRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ GroupRepository = (*GormGroupRepository)(nil)

// NewGroupRepository constructs a Gorm-backed group repository.
func NewGroupRepository(db *gorm.DB, logger *logrus.Logger) (*GormGroupRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormGroupRepository{db: db, logger: logger}, nil
}

// Create stores a new group with a unique name.
func (r *GormGroupRepository) Create(ctx context.Context, name string) (*Group, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, eris.New("group name is required")
	}

	group := &Group{Name: trimmed}
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		r.logError(logrus.Fields{"name": trimmed}, err, "creating group")
		return nil, eris.Wrapf(err, "creating group: %s", trimmed)
	}

	return group, nil
}

// GetByID returns a group with its memberships.
func (r *GormGroupRepository) GetByID(ctx context.Context, id uint) (*Group, error) {
	var group Group
	err := r.db.WithContext(ctx).Preload("Members").First(&group, id).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "group %d", id)
		}
		r.logError(logrus.Fields{"group_id": id}, err, "fetching group")
		return nil, eris.Wrapf(err, "fetching group: %d", id)
	}

	return &group, nil
}

// List returns every group with memberships, ordered by name.
func (r *GormGroupRepository) List(ctx context.Context) ([]Group, error) {
	var groups []Group
	err := r.db.WithContext(ctx).Preload("Members").Order("name ASC").Find(&groups).Error
	if err != nil {
		r.logError(nil, err, "listing groups")
		return nil, eris.Wrap(err, "listing groups")
	}

	return groups, nil
}

// Update renames a group and reassigns its managed page.
func (r *GormGroupRepository) Update(ctx context.Context, id uint, name string, managedPageExternalID *string) (*Group, error) {
	result := r.db.WithContext(ctx).Model(&Group{}).Where("id = ?", id).
		Updates(map[string]any{"name": name, "managed_page_external_id": managedPageExternalID})
	if result.Error != nil {
		r.logError(logrus.Fields{"group_id": id}, result.Error, "updating group")
		return nil, eris.Wrapf(result.Error, "updating group: %d", id)
	}
	if result.RowsAffected == 0 {
		return nil, eris.Wrapf(ErrNotFound, "group %d", id)
	}

	return r.GetByID(ctx, id)
}

// Delete removes a group and its memberships.
func (r *GormGroupRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&GroupMember{}).Error; err != nil {
			return eris.Wrapf(err, "deleting memberships of group %d", id)
		}

		result := tx.Unscoped().Delete(&Group{}, id)
		if result.Error != nil {
			r.logError(logrus.Fields{"group_id": id}, result.Error, "deleting group")
			return eris.Wrapf(result.Error, "deleting group: %d", id)
		}
		if result.RowsAffected == 0 {
			return eris.Wrapf(ErrNotFound, "group %d", id)
		}

		return nil
	})
}

// AddMember inserts a membership row for the (user, group) pair.
func (r *GormGroupRepository) AddMember(ctx context.Context, groupID, userID uint, role Role) error {
	if role == "" {
		role = RoleMember
	}

	member := &GroupMember{UserID: userID, GroupID: groupID, Role: role}
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		r.logError(logrus.Fields{"group_id": groupID, "user_id": userID}, err, "adding group member")
		return eris.Wrapf(err, "adding member %d to group %d", userID, groupID)
	}

	return nil
}

// RemoveMember deletes the membership row for the (user, group) pair.
func (r *GormGroupRepository) RemoveMember(ctx context.Context, groupID, userID uint) error {
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&GroupMember{}).Error
	if err != nil {
		r.logError(logrus.Fields{"group_id": groupID, "user_id": userID}, err, "removing group member")
		return eris.Wrapf(err, "removing member %d from group %d", userID, groupID)
	}

	return nil
}

// UpdateMemberRole changes a member's per-group role.
func (r *GormGroupRepository) UpdateMemberRole(ctx context.Context, groupID, userID uint, role Role) error {
	result := r.db.WithContext(ctx).Model(&GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Update("role", role)
	if result.Error != nil {
		r.logError(logrus.Fields{"group_id": groupID, "user_id": userID}, result.Error, "updating member role")
		return eris.Wrapf(result.Error, "updating role of member %d in group %d", userID, groupID)
	}
	if result.RowsAffected == 0 {
		return eris.Wrapf(ErrNotFound, "membership of user %d in group %d", userID, groupID)
	}

	return nil
}

// MembershipsForUser returns every membership row for the given user.
func (r *GormGroupRepository) MembershipsForUser(ctx context.Context, userID uint) ([]GroupMember, error) {
	var members []GroupMember
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&members).Error
	if err != nil {
		r.logError(logrus.Fields{"user_id": userID}, err, "listing memberships")
		return nil, eris.Wrapf(err, "listing memberships of user %d", userID)
	}

	return members, nil
}

// GroupsByIDs returns the groups with the given ids.
func (r *GormGroupRepository) GroupsByIDs(ctx context.Context, ids []uint) ([]Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var groups []Group
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&groups).Error
	if err != nil {
		r.logError(nil, err, "fetching groups by ids")
		return nil, eris.Wrap(err, "fetching groups by ids")
	}

	return groups, nil
}

// GroupsManaging returns the groups whose managed page is one of the given
// external ids. Used to locate review authorities along an ancestor chain.
func (r *GormGroupRepository) GroupsManaging(ctx context.Context, externalIDs []string) ([]Group, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	var groups []Group
	err := r.db.WithContext(ctx).
		Where("managed_page_external_id IN ?", externalIDs).Find(&groups).Error
	if err != nil {
		r.logError(nil, err, "fetching managing groups")
		return nil, eris.Wrap(err, "fetching managing groups")
	}

	return groups, nil
}

// AdminMemberIDs returns the ids of users holding ADMIN membership in any of
// the given groups.
func (r *GormGroupRepository) AdminMemberIDs(ctx context.Context, groupIDs []uint) ([]uint, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	var ids []uint
	err := r.db.WithContext(ctx).Model(&GroupMember{}).
		Where("group_id IN ? AND role = ?", groupIDs, RoleAdmin).
		Distinct().Pluck("user_id", &ids).Error
	if err != nil {
		r.logError(nil, err, "listing group admin ids")
		return nil, eris.Wrap(err, "listing group admin ids")
	}

	return ids, nil
}

// AdminManagedGroups returns the groups in which the user holds ADMIN
// membership and that manage a page. These are the roots of the user's
// editable subtrees.
func (r *GormGroupRepository) AdminManagedGroups(ctx context.Context, userID uint) ([]Group, error) {
	var groups []Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ? AND group_members.role = ?", userID, RoleAdmin).
		Where("groups.managed_page_external_id IS NOT NULL").
		Find(&groups).Error
	if err != nil {
		r.logError(logrus.Fields{"user_id": userID}, err, "listing admin managed groups")
		return nil, eris.Wrapf(err, "listing admin managed groups of user %d", userID)
	}

	return groups, nil
}

func (r *GormGroupRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
