package notify

import "gorm.io/gorm"

// Notification is one message addressed to a user, shown in the portal's
// notification tray and pushed live to connected clients.
type Notification struct {
	gorm.Model
	RecipientID uint   `gorm:"index;not null"`
	Message     string `gorm:"size:512;not null"`
	Link        string `gorm:"size:512"`
	Read        bool   `gorm:"not null;default:false"`
}

// TableName defines the table name for the Notification model.
func (Notification) TableName() string {
	return "notifications"
}
