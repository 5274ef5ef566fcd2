package wavin

import "errors"

var (
	// ErrContainer indicates the input is not a WAV file we can read.
	ErrContainer = errors.New("wavin: invalid WAV file")

	// ErrUnsupported indicates a valid WAV file with an unsupported sample encoding.
	ErrUnsupported = errors.New("wavin: unsupported sample format")
)
