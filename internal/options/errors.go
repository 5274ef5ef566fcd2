package options

import "errors"

var (
	// ErrUsage is returned for malformed command lines. The caller prints the
	// short usage followed by the error.
	ErrUsage = errors.New("usage error")

	// ErrHelp is returned when -h is given.
	ErrHelp = errors.New("help requested")

	// ErrInvalidNumber is returned for numeric values that are empty, too long or
	// contain a non-digit.
	ErrInvalidNumber = errors.New("invalid number")
)
