package migration

import "errors"

// Setup errors, returned as Go errors by registration calls.
var (
	// ErrInvalidMigration is returned for malformed registrations.
	ErrInvalidMigration = errors.New("invalid migration")

	// ErrNilTransform is returned when the forward transform is nil.
	ErrNilTransform = errors.New("forward transform cannot be nil")

	// ErrMigrationExists is returned when an edge is registered twice.
	ErrMigrationExists = errors.New("migration already registered")
)

// Data errors, reported through Result.Err and never returned directly.
var (
	// ErrInputValidation is reported when input fails the source schema.
	ErrInputValidation = errors.New("input validation failed")

	// ErrOutputValidation is reported when output fails the target schema.
	ErrOutputValidation = errors.New("output validation failed")

	// ErrExecution is reported when a transform returns an error or panics.
	ErrExecution = errors.New("migration execution failed")

	// ErrNoBackward is reported when a downward step has no backward transform.
	ErrNoBackward = errors.New("backward migration not defined")

	// ErrNoPath is reported when no chain connects two versions.
	ErrNoPath = errors.New("no migration path found")

	// ErrCancelled is reported when the context ends before a step starts.
	ErrCancelled = errors.New("migration cancelled")
)
