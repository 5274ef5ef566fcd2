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

import (
	"bytes"
	"crypto/md5" //nolint:gosec // FLAC mandates MD5 for the audio signature.
	"encoding/binary"
	"fmt"
	"hash"

	goflac "github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// Stream header layout. The header always starts with the "fLaC" marker
// followed by the STREAMINFO block.
const (
	// SampleCountOffset is the offset of the low 32 bits of the total sample count.
	SampleCountOffset = 22
	// MD5Offset is the offset of the 16-byte MD5 signature of the audio data.
	MD5Offset = 26

	frameHeaderMaxBytes = 16
	frameFooterBytes    = 2
)

// Encoder turns blocks of interleaved 16-bit PCM into FLAC frames.
// It is not safe for concurrent use.
type Encoder struct {
	format    StreamFormat
	params    Params
	blockSize int
	header    []byte

	enc *goflac.Encoder
	// Frames are serialized here, then copied to the caller's buffer.
	out bytes.Buffer

	channels [][]int32
	mid      []int32
	side     []int32
	pcm      []byte
	analyzer *analyzer

	md5sum hash.Hash
	closed bool
}

// NewEncoder validates params against format and prepares an encoder. The
// serialized stream header is available from Header.
func NewEncoder(format StreamFormat, params Params) (*Encoder, error) {
	if _, err := Validate(format, &params); err != nil {
		return nil, err
	}

	blockSize := params.EffectiveBlockSize(format.SampleRate)

	minBlockSize := blockSize
	if params.VariableBlockSize != VariableNone {
		minBlockSize = min(blockSize, max(MinBlockSize, blockSize/params.VariableBlockSize.splits()))
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(minBlockSize),      //nolint:gosec // validated 16-65535.
		BlockSizeMax:  uint16(blockSize),         //nolint:gosec // validated 16-65535.
		SampleRate:    uint32(format.SampleRate), //nolint:gosec // validated 1-655350.
		NChannels:     uint8(format.Channels),    //nolint:gosec // validated 1-8.
		BitsPerSample: uint8(format.BitDepth),    //nolint:gosec // validated 16.
		NSamples:      format.TotalSamples,
	}

	encoder := &Encoder{
		format:    format,
		params:    params,
		blockSize: blockSize,
		channels:  make([][]int32, format.Channels),
		pcm:       make([]byte, 0, blockSize*format.BlockAlign()),
		md5sum:    md5.New(), //nolint:gosec // see import.
	}

	var blocks []*meta.Block
	if params.PaddingSize > 0 {
		blocks = append(blocks, &meta.Block{
			Header: meta.Header{Type: meta.TypePadding, Length: int64(params.PaddingSize)},
		})
	}

	enc, err := goflac.NewEncoder(&encoder.out, info, blocks...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoderInit, err)
	}

	// Subframe types come from our own analysis; verbatim mode must stay verbatim.
	enc.EnablePredictionAnalysis(false)

	encoder.enc = enc
	encoder.header = bytes.Clone(encoder.out.Bytes())
	encoder.out.Reset()

	// Pre-allocate per-channel buffers at max block size; resliced per block.
	for ch := range encoder.channels {
		encoder.channels[ch] = make([]int32, blockSize)
	}

	if format.Channels == 2 { //nolint:mnd // stereo decorrelation.
		encoder.mid = make([]int32, blockSize)
		encoder.side = make([]int32, blockSize)
	}

	encoder.analyzer = newAnalyzer(&encoder.params, blockSize)

	return encoder, nil
}

// Header returns the serialized stream header: marker, STREAMINFO and padding.
func (e *Encoder) Header() []byte { return e.header }

// BlockSize returns the number of inter-channel samples per block.
func (e *Encoder) BlockSize() int { return e.blockSize }

// MaxFrameSize returns an upper bound on the bytes produced by one
// EncodeFrame call, including every frame of a split block.
func (e *Encoder) MaxFrameSize() int {
	splits := e.params.VariableBlockSize.splits()
	// Side channels carry one extra bit per sample.
	sampleBits := int(e.format.BitDepth) + 1
	perFrame := frameHeaderMaxBytes + frameFooterBytes + 2*e.format.Channels

	return splits*perFrame + e.format.Channels*((e.blockSize*sampleBits+7)/8) //nolint:mnd // bits per byte.
}

// EncodeFrame encodes n interleaved sample frames from samples into dst and
// returns the number of bytes written. A zero n writes nothing.
func (e *Encoder) EncodeFrame(dst []byte, samples []int16, n int) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}

	if n == 0 {
		return 0, nil
	}

	nChannels := e.format.Channels
	if n < 0 || n > e.blockSize || len(samples) < n*nChannels {
		return 0, fmt.Errorf("%w: %d frames of %d channels, have %d samples, block size %d",
			ErrSampleCount, n, nChannels, len(samples), e.blockSize)
	}

	deinterleave(e.channels, samples, n)

	e.out.Reset()

	for _, f := range e.planBlock(n) {
		if err := e.enc.WriteFrame(f); err != nil {
			e.out.Reset()

			return 0, fmt.Errorf("writing frame: %w", err)
		}
	}

	size := e.out.Len()
	if size > len(dst) {
		e.out.Reset()

		return 0, fmt.Errorf("%w: %d bytes, buffer holds %d", ErrFrameTooLarge, size, len(dst))
	}

	copy(dst, e.out.Bytes())
	e.out.Reset()

	e.hash(samples[:n*nChannels])

	return size, nil
}

// hash feeds samples to the MD5 signature as little-endian 16-bit words.
func (e *Encoder) hash(samples []int16) {
	e.pcm = e.pcm[:0]
	for _, s := range samples {
		e.pcm = binary.LittleEndian.AppendUint16(e.pcm, uint16(s)) //nolint:gosec // int16-to-uint16 reinterpretation.
	}

	_, _ = e.md5sum.Write(e.pcm)
}

// MD5 returns the signature of every sample successfully encoded so far.
func (e *Encoder) MD5() [16]byte {
	var sum [16]byte

	copy(sum[:], e.md5sum.Sum(nil))

	return sum
}

// Close releases the encoder's buffers. It is safe to call more than once.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}

	e.closed = true
	e.channels, e.mid, e.side, e.pcm, e.analyzer = nil, nil, nil, nil, nil

	if err := e.enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}

	return nil
}

// deinterleave splits n interleaved sample frames into pre-allocated
// per-channel int32 slices.
//
//nolint:varnamelen // Loop variables i, ch are idiomatic.
func deinterleave(channels [][]int32, samples []int16, n int) {
	// Reslice to exact block size (channels were allocated at max block size).
	for ch := range channels {
		channels[ch] = channels[ch][:n]
	}

	nChannels := len(channels)
	pos := 0

	for i := range n {
		for ch := range nChannels {
			channels[ch][i] = int32(samples[pos])
			pos++
		}
	}
}

// planBlock picks how to cut a block of n samples into frames and returns
// the frames to write.
func (e *Encoder) planBlock(n int) []*frame.Frame {
	splits := e.params.VariableBlockSize.splits()

	var best []*frame.Frame

	bestBits := noCost

	for parts := 1; parts <= splits; parts *= 2 {
		if parts > 1 && n/parts < MinBlockSize {
			break
		}

		frames, bits := e.planSplit(n, parts)
		if bits < bestBits {
			best, bestBits = frames, bits
		}
	}

	return best
}

// planSplit cuts n samples into parts frames of equal size; the last frame
// takes the remainder.
func (e *Encoder) planSplit(n, parts int) ([]*frame.Frame, int) {
	size := n / parts
	frames := make([]*frame.Frame, parts)
	total := 0
	offset := 0

	for i := range parts {
		frameSize := size
		if i == parts-1 {
			frameSize = n - offset
		}

		f, bits := e.buildFrame(offset, frameSize)
		frames[i] = f
		total += bits + frameOverheadBits
		offset += frameSize
	}

	return frames, total
}

// buildFrame analyses samples [offset, offset+size) of every channel and
// constructs the frame that codes them. It returns the estimated payload bits.
func (e *Encoder) buildFrame(offset, size int) (*frame.Frame, int) {
	nChannels := len(e.channels)
	bps := int(e.format.BitDepth)

	chans := make([][]int32, nChannels)
	for ch := range nChannels {
		chans[ch] = e.channels[ch][offset : offset+size]
	}

	var (
		assignment = frame.Channels(nChannels - 1) //nolint:gosec // nChannels is 1-8, always >= 1.
		plans      []subframePlan
	)

	if nChannels == 2 && e.params.StereoMethod == StereoMidSide {
		assignment, plans = e.planStereo(chans[0], chans[1], bps)
	} else {
		plans = make([]subframePlan, nChannels)
		for ch := range nChannels {
			plans[ch] = e.analyzer.analyze(chans[ch], bps)
		}
	}

	bits := 0
	subframes := make([]*frame.Subframe, nChannels)

	// Samples stay left/right; the encoder applies the channel assignment.
	for ch := range nChannels {
		bits += plans[ch].bits
		subframes[ch] = &frame.Subframe{
			SubHeader: plans[ch].subHeader(),
			Samples:   chans[ch],
			NSamples:  size,
		}
	}

	return &frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: e.params.VariableBlockSize == VariableNone,
			BlockSize:         uint16(size),                //nolint:gosec // size <= block size, fits uint16.
			SampleRate:        uint32(e.format.SampleRate), //nolint:gosec // validated 1-655350.
			Channels:          assignment,
			BitsPerSample:     uint8(bps), //nolint:gosec // validated 16.
		},
		Subframes: subframes,
	}, bits
}

// planStereo codes left, right, mid and side and keeps the cheapest pair.
func (e *Encoder) planStereo(left, right []int32, bps int) (frame.Channels, []subframePlan) {
	n := len(left)
	mid, side := e.mid[:n], e.side[:n]

	for i := range n {
		mid[i] = (left[i] + right[i]) >> 1
		side[i] = left[i] - right[i]
	}

	l := e.analyzer.analyze(left, bps)
	r := e.analyzer.analyze(right, bps)
	m := e.analyzer.analyze(mid, bps)
	s := e.analyzer.analyze(side, bps+1)

	assignment, plans, best := frame.ChannelsLR, []subframePlan{l, r}, l.bits+r.bits

	if bits := l.bits + s.bits; bits < best {
		assignment, plans, best = frame.ChannelsLeftSide, []subframePlan{l, s}, bits
	}

	if bits := s.bits + r.bits; bits < best {
		assignment, plans, best = frame.ChannelsSideRight, []subframePlan{s, r}, bits
	}

	if bits := m.bits + s.bits; bits < best {
		assignment, plans = frame.ChannelsMidSide, []subframePlan{m, s}
	}

	return assignment, plans
}
