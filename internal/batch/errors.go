package batch

import "errors"

// ErrIO wraps failures to open, write or close a file.
var ErrIO = errors.New("batch: i/o error")
