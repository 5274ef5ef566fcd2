package flake_test

import (
	"bytes"
	"crypto/md5" //nolint:gosec // FLAC audio signature.
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	goflac "github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/mycophonic/agar/pkg/agar"

	"github.com/mycophonic/flake"
)

// whiteNoise returns deterministic 16-bit noise as interleaved samples.
func whiteNoise(sampleRate, channels, durationSec int) []int16 {
	return pcmToSamples(agar.GenerateWhiteNoise(sampleRate, 16, channels, durationSec))
}

// tones returns n frames of a per-channel sine with a little dither, which
// gives the predictors something to work on.
func tones(n, channels int) []int16 {
	samples := make([]int16, n*channels)
	seed := uint64(0x9E3779B9)

	for i := range n {
		for ch := range channels {
			seed ^= seed << 13
			seed ^= seed >> 7
			seed ^= seed << 17

			freq := 0.01 * float64(ch+1)
			v := 12000*math.Sin(freq*float64(i)) + 3000*math.Sin(0.37*float64(i)) + float64(seed%64) - 32
			samples[i*channels+ch] = int16(v)
		}
	}

	return samples
}

func pcmToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:])) //nolint:gosec // uint16-to-int16 reinterpretation.
	}

	return samples
}

func samplesMD5(samples []int16) [16]byte {
	buf := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(s)) //nolint:gosec // int16-to-uint16 reinterpretation.
	}

	return md5.Sum(buf) //nolint:gosec // FLAC audio signature.
}

// encodeAll drives an encoder over samples block by block and returns the
// complete stream with the sample count and MD5 patched into the header.
func encodeAll(t *testing.T, format flake.StreamFormat, params flake.Params, samples []int16) []byte {
	t.Helper()

	enc, err := flake.NewEncoder(format, params)
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	defer enc.Close()

	out := bytes.Clone(enc.Header())
	buf := make([]byte, enc.MaxFrameSize())
	blockSize := enc.BlockSize()
	total := len(samples) / format.Channels

	for off := 0; off < total; off += blockSize {
		n := min(blockSize, total-off)

		size, err := enc.EncodeFrame(buf, samples[off*format.Channels:], n)
		if err != nil {
			t.Fatalf("encode block at %d: %v", off, err)
		}

		out = append(out, buf[:size]...)
	}

	binary.BigEndian.PutUint32(out[flake.SampleCountOffset:], uint32(total)) //nolint:gosec // test inputs are small.
	sum := enc.MD5()
	copy(out[flake.MD5Offset:], sum[:])

	return out
}

// decodeStream decodes a FLAC stream into interleaved 16-bit samples.
func decodeStream(t *testing.T, data []byte) ([]int16, *meta.StreamInfo) {
	t.Helper()

	stream, err := goflac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open flac stream: %v", err)
	}
	defer stream.Close()

	var samples []int16

	for {
		audioFrame, parseErr := stream.ParseNext()
		if errors.Is(parseErr, io.EOF) {
			break
		}

		if parseErr != nil {
			t.Fatalf("parse frame: %v", parseErr)
		}

		samples = interleave(samples, audioFrame.Subframes, int(audioFrame.BlockSize))
	}

	return samples, stream.Info
}

// interleave appends decoded subframe samples to dst as interleaved int16.
func interleave(dst []int16, subframes []*frame.Subframe, blockSize int) []int16 {
	for i := range blockSize {
		for _, sub := range subframes {
			dst = append(dst, int16(sub.Samples[i])) //nolint:gosec // 16-bit stream.
		}
	}

	return dst
}

// compareSamples requires an exact match, reporting the first few differences.
func compareSamples(t *testing.T, label string, expected, actual []int16, channels int) {
	t.Helper()

	if len(expected) != len(actual) {
		t.Errorf("%s: sample count mismatch: expected %d, got %d", label, len(expected), len(actual))
	}

	shown := 0

	for i := range min(len(expected), len(actual)) {
		if expected[i] != actual[i] {
			t.Errorf("%s: frame %d channel %d: expected %d, got %d",
				label, i/channels, i%channels, expected[i], actual[i])

			shown++
			if shown == 5 {
				return
			}
		}
	}
}

func mustPreset(t *testing.T, level int) flake.Params {
	t.Helper()

	params, err := flake.Preset(level)
	if err != nil {
		t.Fatalf("preset %d: %v", level, err)
	}

	return params
}

func cdFormat(channels, frames int) flake.StreamFormat {
	return flake.StreamFormat{
		SampleRate:   44100,
		BitDepth:     flake.Depth16,
		Channels:     channels,
		TotalSamples: uint64(frames), //nolint:gosec // frames is non-negative.
	}
}
