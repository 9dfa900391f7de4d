package evolve

import "errors"

var (
	// ErrEngineExists is returned by NewEngine when the name is taken.
	ErrEngineExists = errors.New("engine already exists")

	// ErrEngineClosed is returned by mutating calls on a closed engine.
	ErrEngineClosed = errors.New("engine is closed")
)
