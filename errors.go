package flake

import "errors"

var (
	// ErrInvalidParams is returned when a parameter set cannot produce a legal FLAC stream.
	ErrInvalidParams = errors.New("flake: invalid encoding parameters")

	// ErrCompressionLevel is returned for a compression level outside 0-12.
	ErrCompressionLevel = errors.New("flake: compression level must be 0-12")

	// ErrEncoderInit is returned when the encoder cannot be initialized.
	ErrEncoderInit = errors.New("flake: error initializing encoder")

	// ErrFrameTooLarge is returned when an encoded block does not fit the frame buffer.
	ErrFrameTooLarge = errors.New("flake: encoded frame exceeds frame buffer")

	// ErrSampleCount is returned when the sample buffer holds fewer samples than requested.
	ErrSampleCount = errors.New("flake: sample buffer too short")

	// ErrClosed is returned when encoding on a closed encoder.
	ErrClosed = errors.New("flake: encoder closed")
)
