package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Schema holds every table the backend owns.
const Schema = "smartbin"

func EnsureSchema(d *gorm.DB, schema string) error {
	return d.Exec(`CREATE SCHEMA IF NOT EXISTS "` + schema + `"`).Error
}

// Migrate creates the smartbin schema and auto-migrates models into it.
func Migrate(d *gorm.DB, models ...any) error {
	if err := EnsureSchema(d, Schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", Schema, err)
	}
	if err := d.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
