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

package flake_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/mycophonic/agar/pkg/agar"

	"github.com/mycophonic/flake"
)

// flacBinaryTest runs the reference decoder's integrity check, which verifies
// every frame CRC and the MD5 signature.
func flacBinaryTest(flacBin, path string) error {
	cmd := exec.Command(flacBin, "-t", "-s", path)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("flac test: %w\n%s", err, output)
	}

	return nil
}

// flacBinaryDecodeRaw decodes a FLAC file to raw little-endian PCM using the standalone flac binary.
func flacBinaryDecodeRaw(flacBin, path string) ([]byte, error) {
	cmd := exec.Command(flacBin,
		"-d", "-f", "-s",
		"--force-raw-format",
		"--sign=signed",
		"--endian=little",
		"-o", "-",
		path,
	)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("flac decode: %w\n%s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

func samplesToPCM(samples []int16) []byte {
	pcm := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(s)) //nolint:gosec // int16-to-uint16 reinterpretation.
	}

	return pcm
}

// TestReferenceDecoder checks that the reference flac binary, and ffmpeg when
// present, accept our streams and decode them to the original audio.
func TestReferenceDecoder(t *testing.T) {
	t.Parallel()

	flacBin, flacBinErr := agar.LookFor("flac")
	if flacBinErr != nil {
		t.Skip("standalone flac binary not found")
	}

	_, ffmpegBinErr := agar.LookFor("ffmpeg")

	dir := t.TempDir()

	for _, level := range []int{0, 2, 5, 8, 12} {
		for _, channels := range []int{1, 2, 6} {
			t.Run(fmt.Sprintf("level%d_%dch", level, channels), func(t *testing.T) {
				t.Parallel()

				samples := tones(3*44100+777, channels)
				params := mustPreset(t, level)
				stream := encodeAll(t, cdFormat(channels, len(samples)/channels), params, samples)

				path := filepath.Join(dir, fmt.Sprintf("level%d_%dch.flac", level, channels))
				if err := os.WriteFile(path, stream, 0o600); err != nil {
					t.Fatal(err)
				}

				if err := flacBinaryTest(flacBin, path); err != nil {
					t.Fatal(err)
				}

				src := samplesToPCM(samples)

				ref, err := flacBinaryDecodeRaw(flacBin, path)
				if err != nil {
					t.Fatal(err)
				}

				if !bytes.Equal(ref, src) {
					compareSamples(t, "flac binary", samples, pcmToSamples(ref), channels)
				}

				if ffmpegBinErr != nil {
					return
				}

				ffmpegPCM := agar.FFmpegDecode(t, agar.FFmpegDecodeOptions{Src: path, BitDepth: 16, Channels: channels})
				if !bytes.Equal(ffmpegPCM, src) {
					compareSamples(t, "ffmpeg", samples, pcmToSamples(ffmpegPCM), channels)
				}
			})
		}
	}
}

// TestReferenceDecoderVariableBlockSize covers streams whose frames are numbered
// by sample rather than by frame.
func TestReferenceDecoderVariableBlockSize(t *testing.T) {
	t.Parallel()

	flacBin, flacBinErr := agar.LookFor("flac")
	if flacBinErr != nil {
		t.Skip("standalone flac binary not found")
	}

	for _, mode := range []flake.BlockSizeMode{flake.Variable1, flake.Variable2} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			samples := whiteNoise(44100, 2, 1)
			samples = append(samples, tones(20000, 2)...)

			params := mustPreset(t, flake.DefaultLevel)
			params.VariableBlockSize = mode

			stream := encodeAll(t, cdFormat(2, len(samples)/2), params, samples)

			path := filepath.Join(t.TempDir(), "vbs.flac")
			if err := os.WriteFile(path, stream, 0o600); err != nil {
				t.Fatal(err)
			}

			if err := flacBinaryTest(flacBin, path); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func BenchmarkEncode(b *testing.B) {
	samples := whiteNoise(44100, 2, 5)
	samples = append(samples, tones(5*44100, 2)...)

	for _, level := range []int{0, 5, 8, 12} {
		b.Run(fmt.Sprintf("level%d", level), func(b *testing.B) {
			params, err := flake.Preset(level)
			if err != nil {
				b.Fatal(err)
			}

			format := flake.StreamFormat{SampleRate: 44100, BitDepth: flake.Depth16, Channels: 2}

			b.SetBytes(int64(len(samples) * 2))

			for range b.N {
				enc, err := flake.NewEncoder(format, params)
				if err != nil {
					b.Fatal(err)
				}

				buf := make([]byte, enc.MaxFrameSize())
				bs := enc.BlockSize()

				for off := 0; off < len(samples)/2; off += bs {
					n := min(bs, len(samples)/2-off)
					if _, err := enc.EncodeFrame(buf, samples[off*2:], n); err != nil {
						b.Fatal(err)
					}
				}

				_ = enc.Close()
			}
		})
	}
}
