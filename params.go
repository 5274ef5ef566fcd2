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

package flake

import "fmt"

// Compression level bounds.
const (
	MinLevel     = 0
	MaxLevel     = 12
	DefaultLevel = 5
)

// Encoder limits.
const (
	MinBlockSize       = 16
	MaxBlockSize       = 65535
	MaxFixedOrder      = 4
	MaxLPCOrder        = 32
	MaxPartitionOrder  = 8
	MaxPadding         = 1<<24 - 1
	MaxChannels        = 8
	MaxSampleRate      = 655350
	DefaultPadding     = 4096
	DefaultBlockTimeMS = 105
)

// Subset limits for streams at or below 48 kHz.
const (
	subsetRateLimit      = 48000
	subsetBlockSize48k   = 4608
	subsetBlockSize      = 16384
	subsetMaxLPCOrder48k = 12
)

// PredictionType selects the subframe predictor family.
type PredictionType int

// Prediction types.
const (
	PredictionNone PredictionType = iota
	PredictionFixed
	PredictionLevinson
)

func (p PredictionType) String() string {
	switch p {
	case PredictionNone:
		return "none (verbatim mode)"
	case PredictionFixed:
		return "fixed"
	case PredictionLevinson:
		return "levinson-durbin"
	default:
		return "ERROR"
	}
}

// OrderMethod selects how the prediction order is searched.
type OrderMethod int

// Order selection methods.
const (
	OrderMax OrderMethod = iota
	OrderEstimate
	Order2Level
	Order4Level
	Order8Level
	OrderSearch
	OrderLog
)

func (m OrderMethod) String() string {
	switch m {
	case OrderMax:
		return "maximum"
	case OrderEstimate:
		return "estimate"
	case Order2Level:
		return "2-level"
	case Order4Level:
		return "4-level"
	case Order8Level:
		return "8-level"
	case OrderSearch:
		return "full search"
	case OrderLog:
		return "log search"
	default:
		return "ERROR"
	}
}

// StereoMethod selects the inter-channel decorrelation for two-channel streams.
type StereoMethod int

// Stereo methods.
const (
	StereoIndependent StereoMethod = iota
	StereoMidSide
)

func (s StereoMethod) String() string {
	switch s {
	case StereoIndependent:
		return "independent"
	case StereoMidSide:
		return "mid-side"
	default:
		return "ERROR"
	}
}

// BlockSizeMode selects fixed or variable block sizes.
type BlockSizeMode int

// Block size modes.
const (
	VariableNone BlockSizeMode = iota
	Variable1
	Variable2
)

func (v BlockSizeMode) String() string {
	switch v {
	case VariableNone:
		return "none"
	case Variable1:
		return "method 1"
	case Variable2:
		return "method 2"
	default:
		return "ERROR"
	}
}

// splits returns the largest number of equal sub-blocks a block may be cut into.
func (v BlockSizeMode) splits() int {
	switch v {
	case Variable1:
		return 2
	case Variable2:
		return 4
	default:
		return 1
	}
}

// Params holds the tuning knobs of one encode.
// A BlockSize of zero selects the block size from BlockTimeMS.
type Params struct {
	Compression        int
	BlockSize          int
	BlockTimeMS        int
	PredictionType     PredictionType
	MinPredictionOrder int
	MaxPredictionOrder int
	OrderMethod        OrderMethod
	MinPartitionOrder  int
	MaxPartitionOrder  int
	StereoMethod       StereoMethod
	VariableBlockSize  BlockSizeMode
	PaddingSize        int
}

type preset struct {
	blockSize      int
	predictionType PredictionType
	minOrder       int
	maxOrder       int
	orderMethod    OrderMethod
	minPartition   int
	maxPartition   int
	stereoMethod   StereoMethod
}

//nolint:gochecknoglobals
var presets = [MaxLevel + 1]preset{
	{1152, PredictionFixed, 2, 2, OrderMax, 4, 4, StereoIndependent},
	{1152, PredictionFixed, 3, 4, OrderEstimate, 2, 2, StereoMidSide},
	{1152, PredictionFixed, 2, 4, OrderEstimate, 0, 3, StereoMidSide},
	{4608, PredictionLevinson, 1, 6, OrderEstimate, 0, 3, StereoMidSide},
	{4608, PredictionLevinson, 1, 8, OrderEstimate, 0, 3, StereoMidSide},
	{4608, PredictionLevinson, 1, 8, OrderEstimate, 0, 6, StereoMidSide},
	{4608, PredictionLevinson, 1, 8, Order2Level, 0, 8, StereoMidSide},
	{4608, PredictionLevinson, 1, 8, Order4Level, 0, 8, StereoMidSide},
	{4608, PredictionLevinson, 1, 12, Order4Level, 0, 8, StereoMidSide},
	{4608, PredictionLevinson, 1, 12, OrderLog, 0, 8, StereoMidSide},
	{4608, PredictionLevinson, 1, 12, OrderSearch, 0, 8, StereoMidSide},
	{4608, PredictionLevinson, 1, 32, OrderLog, 0, 8, StereoMidSide},
	{4608, PredictionLevinson, 1, 32, OrderSearch, 0, 8, StereoMidSide},
}

// Preset returns the default parameters for a compression level.
func Preset(level int) (Params, error) {
	if level < MinLevel || level > MaxLevel {
		return Params{}, fmt.Errorf("%w: got %d", ErrCompressionLevel, level)
	}

	p := presets[level]

	return Params{
		Compression:        level,
		BlockSize:          p.blockSize,
		BlockTimeMS:        DefaultBlockTimeMS,
		PredictionType:     p.predictionType,
		MinPredictionOrder: p.minOrder,
		MaxPredictionOrder: p.maxOrder,
		OrderMethod:        p.orderMethod,
		MinPartitionOrder:  p.minPartition,
		MaxPartitionOrder:  p.maxPartition,
		StereoMethod:       p.stereoMethod,
		VariableBlockSize:  VariableNone,
		PaddingSize:        DefaultPadding,
	}, nil
}

// standardBlockSizes are the block sizes with a dedicated frame header code.
//
//nolint:gochecknoglobals
var standardBlockSizes = []int{192, 256, 512, 576, 1024, 1152, 2048, 2304, 4096, 4608, 8192, 16384, 32768}

// EffectiveBlockSize returns the block size used at the given sample rate.
// A zero BlockSize picks the largest standard size that fits in BlockTimeMS.
func (p *Params) EffectiveBlockSize(sampleRate int) int {
	if p.BlockSize != 0 {
		return p.BlockSize
	}

	target := sampleRate * p.BlockTimeMS / 1000 //nolint:mnd // milliseconds per second.
	best := standardBlockSizes[0]

	for _, bs := range standardBlockSizes {
		if bs <= target {
			best = bs
		}
	}

	return best
}

// Compliance is the outcome of a successful validation.
type Compliance int

// Compliance levels.
const (
	Subset Compliance = iota
	NonSubset
)

// Validate checks params against format legality rules. It reports whether the
// combination stays within the FLAC Subset, or returns ErrInvalidParams.
//
//nolint:cyclop,gocognit // one flat list of range checks.
func Validate(format StreamFormat, params *Params) (Compliance, error) {
	invalid := func(format string, args ...any) (Compliance, error) {
		return NonSubset, fmt.Errorf("%w: "+format, append([]any{ErrInvalidParams}, args...)...)
	}

	switch {
	case format.Channels < 1 || format.Channels > MaxChannels:
		return invalid("channels %d outside 1-%d", format.Channels, MaxChannels)
	case format.SampleRate < 1 || format.SampleRate > MaxSampleRate:
		return invalid("sample rate %d outside 1-%d", format.SampleRate, MaxSampleRate)
	case format.BitDepth != Depth16:
		return invalid("bit depth %d, only 16 is supported", format.BitDepth)
	case params.Compression < MinLevel || params.Compression > MaxLevel:
		return invalid("compression level %d outside %d-%d", params.Compression, MinLevel, MaxLevel)
	case params.BlockSize != 0 && (params.BlockSize < MinBlockSize || params.BlockSize > MaxBlockSize):
		return invalid("block size %d outside %d-%d", params.BlockSize, MinBlockSize, MaxBlockSize)
	case params.BlockSize == 0 && params.BlockTimeMS <= 0:
		return invalid("block time %dms must be positive", params.BlockTimeMS)
	case params.PredictionType < PredictionNone || params.PredictionType > PredictionLevinson:
		return invalid("prediction type %d outside 0-2", params.PredictionType)
	case params.OrderMethod < OrderMax || params.OrderMethod > OrderLog:
		return invalid("order method %d outside 0-6", params.OrderMethod)
	case params.StereoMethod < StereoIndependent || params.StereoMethod > StereoMidSide:
		return invalid("stereo method %d outside 0-1", params.StereoMethod)
	case params.VariableBlockSize < VariableNone || params.VariableBlockSize > Variable2:
		return invalid("variable block size %d outside 0-2", params.VariableBlockSize)
	case params.PaddingSize < 0 || params.PaddingSize > MaxPadding:
		return invalid("padding %d outside 0-%d", params.PaddingSize, MaxPadding)
	}

	blockSize := params.EffectiveBlockSize(format.SampleRate)

	if params.PredictionType != PredictionNone {
		minOrder, maxOrder := params.MinPredictionOrder, params.MaxPredictionOrder

		switch {
		case minOrder > maxOrder:
			return invalid("prediction order %d,%d: min exceeds max", minOrder, maxOrder)
		case params.PredictionType == PredictionFixed && (minOrder < 0 || maxOrder > MaxFixedOrder):
			return invalid("fixed prediction order %d,%d outside 0-%d", minOrder, maxOrder, MaxFixedOrder)
		case params.PredictionType == PredictionLevinson && (minOrder < 1 || maxOrder > MaxLPCOrder):
			return invalid("lpc prediction order %d,%d outside 1-%d", minOrder, maxOrder, MaxLPCOrder)
		case blockSize <= maxOrder:
			return invalid("block size %d must exceed prediction order %d", blockSize, maxOrder)
		}

		minPart, maxPart := params.MinPartitionOrder, params.MaxPartitionOrder

		switch {
		case minPart > maxPart:
			return invalid("partition order %d,%d: min exceeds max", minPart, maxPart)
		case minPart < 0 || maxPart > MaxPartitionOrder:
			return invalid("partition order %d,%d outside 0-%d", minPart, maxPart, MaxPartitionOrder)
		}
	}

	compliance := Subset

	if format.SampleRate <= subsetRateLimit {
		if blockSize > subsetBlockSize48k {
			compliance = NonSubset
		}

		if params.PredictionType == PredictionLevinson && params.MaxPredictionOrder > subsetMaxLPCOrder48k {
			compliance = NonSubset
		}
	} else if blockSize > subsetBlockSize {
		compliance = NonSubset
	}

	return compliance, nil
}
