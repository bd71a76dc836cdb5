package db

import (
	"fmt"

	"github.com/ilanpazar/messaging/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the GORM models of the messaging core for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Conversation{},
		&models.Message{},
	}
}

// AutoMigrate creates or updates all messaging tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
