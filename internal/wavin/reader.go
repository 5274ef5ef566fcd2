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

// Package wavin reads PCM WAV input and hands it out as interleaved signed
// 16-bit samples.
//
//nolint:gosec // Integer conversions are bounded by WAV format constraints.
package wavin

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// Info describes the stream found in the WAV header.
type Info struct {
	Channels   int
	SampleRate int
	BitWidth   int
	// TotalSamples is the number of sample frames, or 0 when unknown.
	TotalSamples uint64
	BlockAlign   int
}

// Reader decodes the data chunk of a WAV file.
type Reader struct {
	dec  *wav.Decoder
	info Info
	buf  *audio.IntBuffer
	// left counts undecoded samples in the data chunk, -1 when the size is unknown.
	left int
	// pending holds samples decoded past the last requested frame.
	pending []int
}

// Open parses the RIFF header of rs and positions it at the start of the PCM data.
func Open(rs io.ReadSeeker) (*Reader, error) {
	dec := wav.NewDecoder(rs)

	dec.ReadInfo()

	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}

	if dec.WavAudioFormat != formatPCM && dec.WavAudioFormat != formatExtensible {
		return nil, fmt.Errorf("%w: %w: audio format 0x%04X", ErrContainer, ErrUnsupported, dec.WavAudioFormat)
	}

	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %w: %d-bit samples", ErrContainer, ErrUnsupported, dec.BitDepth)
	}

	if dec.NumChans == 0 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrContainer, dec.NumChans, dec.SampleRate)
	}

	// FwdToPCM reports header failures through Err rather than its return value.
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}

	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}

	if dec.PCMChunk == nil {
		return nil, fmt.Errorf("%w: no data chunk", ErrContainer)
	}

	info := Info{
		Channels:   int(dec.NumChans),
		SampleRate: int(dec.SampleRate),
		BitWidth:   int(dec.BitDepth),
		BlockAlign: int(dec.NumChans) * int(dec.BitDepth) / 8,
	}

	left := -1

	if dec.PCMSize > 0 {
		info.TotalSamples = uint64(dec.PCMSize / info.BlockAlign)
		left = dec.PCMSize / (info.BitWidth / 8)
	}

	return &Reader{dec: dec, info: info, left: left}, nil
}

// Info returns the stream description.
func (r *Reader) Info() Info {
	return r.info
}

// ReadSamples reads up to limit sample frames into dst as interleaved 16-bit
// samples. It returns the number of frames read, 0 at end of data.
func (r *Reader) ReadSamples(dst []int16, limit int) (int, error) {
	ch := r.info.Channels
	limit = min(limit, len(dst)/ch)

	if limit <= 0 {
		return 0, nil
	}

	want := limit * ch

	if r.buf == nil || len(r.buf.Data) < want {
		r.buf = &audio.IntBuffer{Data: make([]int, want)}
	}

	got := copy(r.buf.Data, r.pending)
	r.pending = r.pending[:0]

	for got < want && r.left != 0 {
		end := want
		if r.left > 0 {
			end = min(want, got+r.left)
		}

		n, err := r.dec.PCMBuffer(&audio.IntBuffer{Data: r.buf.Data[got:end]})
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrContainer, err)
		}

		if n == 0 {
			break
		}

		got += n

		if r.left > 0 {
			r.left -= n
		}
	}

	// A trailing partial frame is kept back; at end of data it is dropped.
	frames := got / ch
	r.pending = append(r.pending, r.buf.Data[frames*ch:got]...)

	convert(dst[:frames*ch], r.buf.Data[:frames*ch], r.info.BitWidth)

	return frames, nil
}

// convert narrows decoded samples of the given width to signed 16-bit.
func convert(dst []int16, src []int, width int) {
	switch width {
	case 8:
		// 8-bit WAV is unsigned.
		for i, s := range src {
			dst[i] = int16((s - 128) << 8)
		}
	case 16:
		for i, s := range src {
			dst[i] = int16(s)
		}
	default:
		shift := width - 16
		for i, s := range src {
			dst[i] = int16(s >> shift)
		}
	}
}

// Buffer reads r fully so that a non-seekable stream can be parsed.
func Buffer(r io.Reader) (io.ReadSeeker, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	return bytes.NewReader(data), nil
}
