package config

import "errors"

var (
	// ErrInvalidConfig reports a configuration that fails validation.
	ErrInvalidConfig = errors.New("voxkit: invalid config")

	// ErrUnknownLayer reports a layer lookup by a name the config does
	// not declare.
	ErrUnknownLayer = errors.New("voxkit: unknown layer")

	// ErrNoExplicitSplit signals that a layer has no override and no
	// split-file assignment for the requested split. It is an expected
	// outcome, not a failure: callers should treat the split as empty
	// for that layer.
	ErrNoExplicitSplit = errors.New("voxkit: no explicit split for layer")

	// ErrFoldOutOfRange reports a fold index beyond the folds the
	// split file declares.
	ErrFoldOutOfRange = errors.New("voxkit: fold index out of range")
)
