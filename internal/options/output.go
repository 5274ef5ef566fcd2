package options

import (
	"fmt"

	"github.com/mewkiz/pkg/pathutil"
)

const (
	// MaxPathLen bounds derived output paths.
	MaxPathLen = 4096
	// StdStream selects stdin for input and stdout for output.
	StdStream = "-"

	flacExt = ".flac"
)

// DeriveOutput returns the output path for input when none was given: the
// extension of the last path element is replaced by .flac, or .flac is
// appended when there is none.
func DeriveOutput(input string) (string, error) {
	out := pathutil.TrimExt(input) + flacExt
	if len(out) > MaxPathLen {
		return "", fmt.Errorf("%w: input filename too long", ErrUsage)
	}

	return out, nil
}
