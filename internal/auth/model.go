package auth

import (
	"gorm.io/gorm"

	"knowledgehub/app/internal/content"
)

// User is a portal account. The global role distinguishes administrators from
// regular contributors; subtree authority is granted separately through
// group memberships.
type User struct {
	gorm.Model
	Username       string       `gorm:"size:255;uniqueIndex:idx_users_username;not null"`
	Name           string       `gorm:"size:255;not null"`
	HashedPassword string       `gorm:"size:255;not null"`
	Role           content.Role `gorm:"size:16;not null;default:MEMBER"`
}

// TableName defines the table name for the User model.
func (User) TableName() string {
	return "users"
}

// Actor converts the user into the value type the content domain works with.
func (u *User) Actor() content.Actor {
	return content.Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}
