package db

import (
	"movedocs/internal/auth"
	"movedocs/internal/remote"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&auth.User{},
		&remote.Draft{},
	); err != nil {
		return err
	}

	// GIN index so list views can filter drafts by covered section
	if err := gdb.Exec(`create index if not exists idx_drafts_sections on drafts using gin (sections);`).Error; err != nil {
		return err
	}

	return gdb.Exec(`create index if not exists idx_drafts_user_modified on drafts(user_id, last_modified desc);`).Error
}
