package database

import "errors"

var (
	// ErrEmptyPath is returned by Open when no database path is configured.
	ErrEmptyPath = errors.New("database: path is required")

	// ErrMigrationNotFound is returned by MigrateDown when the latest applied
	// version has no file in the migration source.
	ErrMigrationNotFound = errors.New("database: migration not found")

	// ErrNoDownMigration is returned by MigrateDown when the latest applied
	// version has no .down.sql file.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
