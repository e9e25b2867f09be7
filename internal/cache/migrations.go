package cache

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/tillworks/quota/migrations"
)

// RunMigrations brings a cache database up to the latest embedded schema.
func RunMigrations(db *sql.DB) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
