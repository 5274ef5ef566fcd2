package flake

import "fmt"

// BitDepth represents the bit depth of PCM audio samples.
type BitDepth uint

// Standard PCM bit depths.
const (
	Depth8  BitDepth = 8
	Depth16 BitDepth = 16
	Depth24 BitDepth = 24
	Depth32 BitDepth = 32
)

// BytesPerSample returns the number of bytes needed to store one sample.
func (d BitDepth) BytesPerSample() int {
	switch d {
	case Depth8:
		return 1
	case Depth16:
		return 2
	case Depth24:
		return 3
	case Depth32:
		return 4
	default:
		panic(fmt.Sprintf("flake: BytesPerSample called with unsupported bit depth %d", d))
	}
}

// StreamFormat describes the PCM stream handed to the encoder.
// TotalSamples counts inter-channel samples; zero means unknown.
type StreamFormat struct {
	SampleRate   int
	BitDepth     BitDepth
	Channels     int
	TotalSamples uint64
}

// BlockAlign returns the number of bytes in one interleaved sample frame.
func (f StreamFormat) BlockAlign() int {
	return f.Channels * f.BitDepth.BytesPerSample()
}
