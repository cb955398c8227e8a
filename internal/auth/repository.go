package auth

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"knowledgehub/app/internal/content"
)

// UserRepository defines persistence operations for portal accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uint) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	AdminIDs(ctx context.Context) ([]uint, error)
}

// GormUserRepository persists users using a Gorm connection.
type GormUserRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

var _ UserRepository = (*GormUserRepository)(nil)

// NewUserRepository constructs a Gorm-backed user repository.
func NewUserRepository(db *gorm.DB, logger *logrus.Logger) (*GormUserRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormUserRepository{db: db, logger: logger}, nil
}

// Create stores a new user account.
func (r *GormUserRepository) Create(ctx context.Context, user *User) error {
	if user == nil {
		return eris.New("user is nil")
	}
	if strings.TrimSpace(user.Username) == "" {
		return eris.New("username is required")
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.logError(logrus.Fields{"username": user.Username}, err, "creating user")
		return eris.Wrapf(err, "creating user: %s", user.Username)
	}

	return nil
}

// GetByID returns the user with the given id.
func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "user %d", id)
		}
		r.logError(logrus.Fields{"user_id": id}, err, "fetching user")
		return nil, eris.Wrapf(err, "fetching user: %d", id)
	}

	return &user, nil
}

// GetByUsername returns the user with the given username.
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return nil, eris.New("username is required")
	}

	var user User
	if err := r.db.WithContext(ctx).First(&user, "username = ?", trimmed).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "user %s", trimmed)
		}
		r.logError(logrus.Fields{"username": trimmed}, err, "fetching user by username")
		return nil, eris.Wrapf(err, "fetching user: %s", trimmed)
	}

	return &user, nil
}

// List returns every user ordered by username.
func (r *GormUserRepository) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		r.logError(nil, err, "listing users")
		return nil, eris.Wrap(err, "listing users")
	}

	return users, nil
}

// AdminIDs returns the ids of every user holding the global ADMIN role.
func (r *GormUserRepository) AdminIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&User{}).
		Where("role = ?", content.RoleAdmin).Pluck("id", &ids).Error
	if err != nil {
		r.logError(nil, err, "listing admin ids")
		return nil, eris.Wrap(err, "listing admin ids")
	}

	return ids, nil
}

func (r *GormUserRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
