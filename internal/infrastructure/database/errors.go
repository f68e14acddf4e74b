package database

import "errors"

var (
	// ErrEmptyPath is returned by Open when no database path is configured.
	ErrEmptyPath = errors.New("database: path is empty")

	// ErrUnhealthy wraps a failed health check query.
	ErrUnhealthy = errors.New("database: health check failed")

	// ErrBadMigration is returned when a migration file cannot be used.
	ErrBadMigration = errors.New("database: invalid migration")
)
