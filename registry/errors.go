package registry

import "errors"

var (
	// ErrEmptyName is returned when a schema name is empty.
	ErrEmptyName = errors.New("schema name cannot be empty")

	// ErrNilSchema is returned when registering a nil schema.
	ErrNilSchema = errors.New("schema cannot be nil")

	// ErrSchemaExists is returned when creating a name that already has versions.
	ErrSchemaExists = errors.New("schema already exists")

	// ErrSchemaNotFound is returned when a name has no versions.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrVersionExists is returned when a (name, version) pair is registered twice.
	ErrVersionExists = errors.New("schema version already exists")

	// ErrVersionNotFound is returned when a (name, version) pair is unknown.
	ErrVersionNotFound = errors.New("schema version not found")

	// ErrInvalidVersion is returned when a version number is not the next one.
	ErrInvalidVersion = errors.New("invalid schema version")

	// ErrHashNotFound is returned when no version carries the given hash.
	ErrHashNotFound = errors.New("schema hash not found")
)
