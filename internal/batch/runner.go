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

//nolint:gosec // Integer conversions are bounded by audio format constraints; file paths from CLI args.
package batch

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mewkiz/pkg/osutil"

	"github.com/mycophonic/flake"
	"github.com/mycophonic/flake/internal/options"
	"github.com/mycophonic/flake/internal/wavin"
)

const writeBufferSize = 64 << 10

// FileResult summarises one encoded file.
type FileResult struct {
	Input  string
	Output string
	// Samples counts the sample frames of successfully encoded blocks.
	Samples uint64
	// Bytes is the output size, header included.
	Bytes        uint64
	FailedBlocks int
	// Patched reports whether the sample count and MD5 were written back into the header.
	Patched bool
	MD5     [16]byte
}

// Runner encodes the files of a batch. Zero values fall back to the process
// streams, the default logger and the flake encoder.
type Runner struct {
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *slog.Logger
	NewEngine EngineFactory
}

// Run encodes every pair in order and stops at the first file that fails.
// Streams of a finished file are closed before the next one is opened.
func (r *Runner) Run(ctx context.Context, b *Batch) ([]FileResult, error) {
	results := make([]FileResult, 0, len(b.Pairs))

	for i, pair := range b.Pairs {
		res, err := r.encodeFile(ctx, &b.Config, pair, i == 0)

		closeErr := pair.close()

		results = append(results, res)

		if err != nil {
			return results, fmt.Errorf("%s: %w", pair.Input, err)
		}

		if closeErr != nil {
			return results, fmt.Errorf("%w: %s: %w", ErrIO, pair.Output, closeErr)
		}
	}

	return results, nil
}

//nolint:cyclop,funlen // one step per stage of the pipeline.
func (r *Runner) encodeFile(ctx context.Context, cfg *options.Config, pair *FilePair, first bool) (FileResult, error) {
	res := FileResult{Input: pair.Input, Output: pair.Output}
	log := r.logger()
	stderr := r.stderr()

	if cfg.Quiet {
		stderr = io.Discard
	}

	input, err := r.openInput(pair)
	if err != nil {
		return res, err
	}

	reader, err := wavin.Open(input)
	if err != nil {
		return res, err
	}

	info := reader.Info()
	format := flake.StreamFormat{
		SampleRate:   info.SampleRate,
		BitDepth:     flake.Depth16,
		Channels:     info.Channels,
		TotalSamples: info.TotalSamples,
	}

	params, err := cfg.Params()
	if err != nil {
		return res, err
	}

	compliance, err := flake.Validate(format, &params)
	if err != nil {
		return res, err
	}

	engine, err := r.newEngine()(format, params)
	if err != nil {
		return res, err
	}

	defer func() { _ = engine.Close() }()

	out, err := r.openOutput(pair)
	if err != nil {
		return res, err
	}

	w := bufio.NewWriterSize(out, writeBufferSize)

	header := engine.Header()
	if _, err = w.Write(header); err != nil {
		return res, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if first {
		if compliance == flake.NonSubset {
			log.Warn("the chosen encoding options are not FLAC Subset compliant; " +
				"the encoded files may not work with some FLAC players and decoders")
		}

		printParams(stderr, &params, info.Channels)
	}

	fmt.Fprintf(stderr, "\ninput file:  %q\noutput file: %q\n%s\n", pair.Input, pair.Output, describe(info))

	if info.BitWidth != int(flake.Depth16) {
		log.Warn("converting to 16-bit (not lossless)", "file", pair.Input, "bits", info.BitWidth)
	}

	if info.TotalSamples > 0 {
		fmt.Fprintf(stderr, "samples: %d (%s)\n", info.TotalSamples, duration(info.TotalSamples, info.SampleRate))
	} else {
		fmt.Fprintln(stderr, "samples: unknown")
	}

	blockSize := engine.BlockSize()
	if params.BlockSize == 0 {
		fmt.Fprintf(stderr, "block size: %d\n", blockSize)
	}

	samples := make([]int16, blockSize*info.Channels)
	frame := make([]byte, engine.MaxFrameSize())

	st := &stats{
		rate:       info.SampleRate,
		blockAlign: info.BlockAlign,
		total:      info.TotalSamples,
		bytes:      uint64(len(header)),
	}

	for block := 0; ; block++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		n, err := reader.ReadSamples(samples, blockSize)
		if err != nil {
			return res, err
		}

		if n == 0 {
			break
		}

		size, err := engine.EncodeFrame(frame, samples, n)
		if err != nil {
			log.Error("error encoding frame", "file", pair.Input, "block", block, "error", err)

			res.FailedBlocks++

			continue
		}

		if size == 0 {
			continue
		}

		if _, err = w.Write(frame[:size]); err != nil {
			return res, fmt.Errorf("%w: %w", ErrIO, err)
		}

		if st.add(n, size) {
			st.printProgress(stderr)
		}
	}

	fmt.Fprintf(stderr, "| bytes: %d \n\n", st.bytes)

	res.Samples, res.Bytes = st.samples, st.bytes
	res.MD5 = engine.MD5()

	if err = engine.Close(); err != nil {
		return res, err
	}

	if err = w.Flush(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrIO, err)
	}

	res.Patched, err = patchHeader(out, st.samples, res.MD5)

	return res, err
}

// patchHeader rewrites the sample count and MD5 of the STREAMINFO block.
// Outputs that cannot seek, such as pipes, keep their provisional values.
func patchHeader(out io.Writer, samples uint64, sum [16]byte) (bool, error) {
	ws, ok := out.(io.WriteSeeker)
	if !ok {
		return false, nil
	}

	if _, err := ws.Seek(flake.SampleCountOffset, io.SeekStart); err != nil {
		return false, nil //nolint:nilerr // not seekable.
	}

	var field [flake.MD5Offset - flake.SampleCountOffset + len(sum)]byte

	binary.BigEndian.PutUint32(field[:], uint32(samples))
	copy(field[flake.MD5Offset-flake.SampleCountOffset:], sum[:])

	if _, err := ws.Write(field[:]); err != nil {
		return false, fmt.Errorf("%w: patching header: %w", ErrIO, err)
	}

	// Leave the stream positioned at its end.
	if _, err := ws.Seek(0, io.SeekEnd); err != nil {
		return true, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return true, nil
}

func (r *Runner) openInput(pair *FilePair) (io.ReadSeeker, error) {
	if pair.Input == options.StdStream {
		stdin := r.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}

		rs, err := wavin.Buffer(stdin)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}

		return rs, nil
	}

	f, err := os.Open(pair.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	pair.in = f

	return f, nil
}

func (r *Runner) openOutput(pair *FilePair) (io.Writer, error) {
	if pair.Output == options.StdStream {
		if r.Stdout != nil {
			return r.Stdout, nil
		}

		return os.Stdout, nil
	}

	if osutil.Exists(pair.Output) {
		r.logger().Warn("overwriting existing file", "file", pair.Output)
	}

	f, err := os.Create(pair.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	pair.out = f

	return f, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}

	return os.Stderr
}

func (r *Runner) newEngine() EngineFactory {
	if r.NewEngine != nil {
		return r.NewEngine
	}

	return NewFlakeEngine
}
