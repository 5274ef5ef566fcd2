/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package options turns the flake command line into an encoder configuration
// and the list of files to encode.
package options

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mycophonic/flake"
)

// valueFlags are the single-letter options that consume the next argument.
const valueFlags = "blmoprstv"

// Config is the batch-wide encoder configuration. Fields left unset fall back
// to the preset of the compression level.
type Config struct {
	Compression        int
	BlockSize          Optional[int]
	PredictionType     Optional[flake.PredictionType]
	MinPredictionOrder Optional[int]
	MaxPredictionOrder Optional[int]
	OrderMethod        Optional[flake.OrderMethod]
	MinPartitionOrder  Optional[int]
	MaxPartitionOrder  Optional[int]
	StereoMethod       Optional[flake.StereoMethod]
	VariableBlockSize  Optional[flake.BlockSizeMode]
	Padding            Optional[int]
	Quiet              bool
}

// Params returns the preset for the compression level with every explicit
// override applied on top.
func (c *Config) Params() (flake.Params, error) {
	params, err := flake.Preset(c.Compression)
	if err != nil {
		return flake.Params{}, err
	}

	c.Apply(&params)

	return params, nil
}

// Apply overlays the explicitly set fields onto params. An explicit value
// always wins over the preset.
func (c *Config) Apply(params *flake.Params) {
	c.BlockSize.ApplyTo(&params.BlockSize)
	c.OrderMethod.ApplyTo(&params.OrderMethod)
	c.StereoMethod.ApplyTo(&params.StereoMethod)
	c.PredictionType.ApplyTo(&params.PredictionType)
	c.MinPredictionOrder.ApplyTo(&params.MinPredictionOrder)
	c.MaxPredictionOrder.ApplyTo(&params.MaxPredictionOrder)
	c.MinPartitionOrder.ApplyTo(&params.MinPartitionOrder)
	c.MaxPartitionOrder.ApplyTo(&params.MaxPartitionOrder)
	c.Padding.ApplyTo(&params.PaddingSize)
	c.VariableBlockSize.ApplyTo(&params.VariableBlockSize)

	// A prediction type override keeps preset orders usable by that type.
	if c.PredictionType.IsSet() && !c.MaxPredictionOrder.IsSet() {
		switch params.PredictionType {
		case flake.PredictionFixed:
			params.MaxPredictionOrder = min(params.MaxPredictionOrder, flake.MaxFixedOrder)
			params.MinPredictionOrder = min(params.MinPredictionOrder, params.MaxPredictionOrder)
		case flake.PredictionLevinson:
			params.MinPredictionOrder = max(params.MinPredictionOrder, 1)
			params.MaxPredictionOrder = max(params.MaxPredictionOrder, params.MinPredictionOrder)
		case flake.PredictionNone:
		}
	}
}

// FileNames is one input and the output it is encoded to.
type FileNames struct {
	Input  string
	Output string
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Config Config
	Files  []FileNames
}

// Resolve scans args (without the program name) left to right. It returns
// ErrHelp when -h is seen, or an error wrapping ErrUsage for any malformed
// command line.
//
//nolint:cyclop // one state per argument kind.
func Resolve(args []string) (*Resolution, error) {
	res := &Resolution{Config: Config{Compression: flake.DefaultLevel}}

	var (
		inputs []string
		output Optional[string]
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// A lone "-" or anything not starting with '-' is a file.
		if len(arg) < 2 || arg[0] != '-' {
			inputs = append(inputs, arg)

			continue
		}

		opt := arg[1:]

		if isDigit(opt[0]) {
			// Longer dash-digit tokens are taken as filenames.
			if len(opt) > 2 { //nolint:mnd // -0 through -12.
				inputs = append(inputs, arg)

				continue
			}

			level, err := ParseNumber(opt, MaxDigits)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUsage, err)
			}

			if level > flake.MaxLevel {
				return nil, fmt.Errorf("%w: compression level must be %d-%d", ErrUsage, flake.MinLevel, flake.MaxLevel)
			}

			res.Config.Compression = level

			continue
		}

		if len(opt) > 1 {
			inputs = append(inputs, arg)

			continue
		}

		letter := opt[0]

		switch {
		case letter == 'h':
			return nil, ErrHelp
		case letter == 'q':
			res.Config.Quiet = true

			continue
		case strings.IndexByte(valueFlags, letter) < 0:
			return nil, fmt.Errorf("%w: invalid option: -%c", ErrUsage, letter)
		case i+1 >= len(args):
			return nil, fmt.Errorf("%w: incomplete option: -%c", ErrUsage, letter)
		}

		i++

		if letter == 'o' {
			if output.IsSet() {
				return nil, fmt.Errorf("%w: output file given more than once", ErrUsage)
			}

			output = Some(args[i])

			continue
		}

		if err := res.Config.set(letter, args[i]); err != nil {
			return nil, fmt.Errorf("%w: -%c %s: %w", ErrUsage, letter, args[i], err)
		}
	}

	files, err := pairFiles(inputs, output)
	if err != nil {
		return nil, err
	}

	res.Files = files

	return res, nil
}

// set stores the value of one numeric option.
//
//nolint:cyclop // one case per option.
func (c *Config) set(letter byte, value string) error {
	if letter == 'l' || letter == 'r' {
		lo, hi, err := parseOrderRange(value)
		if err != nil {
			return err
		}

		if letter == 'r' {
			c.MinPartitionOrder.Set(lo)
			c.MaxPartitionOrder.Set(hi)

			return nil
		}

		// Only a prediction type given earlier on the command line constrains
		// the order here; Validate catches the rest.
		switch ptype, _ := c.PredictionType.Get(); {
		case !c.PredictionType.IsSet():
		case ptype == flake.PredictionFixed:
			hi = min(hi, flake.MaxFixedOrder)
		case ptype == flake.PredictionLevinson && lo == 0:
			lo = 1
		}

		c.MinPredictionOrder.Set(lo)
		c.MaxPredictionOrder.Set(hi)

		return nil
	}

	n, err := ParseNumber(value, MaxDigits)
	if err != nil {
		return err
	}

	switch letter {
	case 'b':
		c.BlockSize.Set(n)
	case 'm':
		c.OrderMethod.Set(flake.OrderMethod(n))
	case 'p':
		c.Padding.Set(n)
	case 's':
		c.StereoMethod.Set(flake.StereoMethod(n))
	case 't':
		c.PredictionType.Set(flake.PredictionType(n))
	case 'v':
		c.VariableBlockSize.Set(flake.BlockSizeMode(n))
	}

	return nil
}

// parseOrderRange parses "max" (min is then 0) or "min,max".
func parseOrderRange(value string) (int, int, error) {
	left, right, found := strings.Cut(value, ",")
	if !found {
		hi, err := ParseNumber(value, MaxDigits)

		return 0, hi, err
	}

	lo, err := ParseNumber(left, MaxDigits)
	if err != nil {
		return 0, 0, err
	}

	hi, err := ParseNumber(right, MaxDigits)
	if err != nil {
		return 0, 0, err
	}

	return lo, hi, nil
}

// pairFiles binds an output to every input and rejects ambiguous or
// self-overwriting combinations.
func pairFiles(inputs []string, output Optional[string]) ([]FileNames, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no input files", ErrUsage)
	}

	if output.IsSet() && len(inputs) > 1 {
		return nil, fmt.Errorf("%w: cannot specify output file when using multiple input files", ErrUsage)
	}

	files := make([]FileNames, len(inputs))

	for i, in := range inputs {
		out, ok := output.Get()
		if !ok {
			var err error
			if out, err = DeriveOutput(in); err != nil {
				return nil, err
			}
		}

		if in != StdStream && out != StdStream && filepath.Clean(in) == filepath.Clean(out) {
			return nil, fmt.Errorf("%w: output filename cannot match input filename", ErrUsage)
		}

		files[i] = FileNames{Input: in, Output: out}
	}

	return files, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
