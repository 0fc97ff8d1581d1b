package lib

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theleywin/talentnest-graph/src/models"
)

// AutoMigrate runs all database migrations.
// Notifications are migrated even when they live in MongoDB so switching
// NOTIFICATION_STORE back to sql needs no extra step.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Connection{},
		&models.ConnectionEvent{},
		&models.Notification{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}
	return nil
}
