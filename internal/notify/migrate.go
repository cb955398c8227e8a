package notify

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrate applies the notification schema using Gorm's AutoMigrate.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if db == nil {
		return eris.New("gorm DB is required")
	}

	if err := db.WithContext(ctx).AutoMigrate(&Notification{}); err != nil {
		if logger != nil {
			logger.WithField("error", err.Error()).Error("notification schema migration failed")
		}
		return eris.Wrap(err, "auto migrating notification schema")
	}

	return nil
}
