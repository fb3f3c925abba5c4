package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates a recording has an unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported video format")

	// ErrNotADirectory indicates a watch target is not a directory.
	ErrNotADirectory = errors.New("not a directory")

	// ErrInvalidLogLevel indicates an unknown LOG_LEVEL value.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// ErrInvalidOutputDir indicates the output directory cannot be created or written.
var ErrInvalidOutputDir = errors.New("invalid output directory")
