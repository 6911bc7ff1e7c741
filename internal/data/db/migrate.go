package db

import (
	"gorm.io/gorm"

	types "github.com/itacademy-edms-team/24-3-D-DOCS-sub003/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Document{},
		&types.DocumentBlock{},
		&types.AgentLogEntry{},
	)
}
