package schema

import "errors"

var (
	// ErrInvalidValue is returned when a value does not satisfy a schema.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidDocument is returned when a schema document cannot be parsed.
	ErrInvalidDocument = errors.New("invalid schema document")

	// ErrUnsupported is returned when a schema cannot be expressed as a document.
	ErrUnsupported = errors.New("unsupported schema")
)
