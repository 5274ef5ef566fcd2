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

// Package batch encodes a list of WAV files to FLAC, one after the other.
package batch

import (
	"errors"
	"io"

	"github.com/mycophonic/flake"
	"github.com/mycophonic/flake/internal/options"
)

// Engine is the FLAC encoder driven by the runner. *flake.Encoder implements it.
type Engine interface {
	Header() []byte
	BlockSize() int
	MaxFrameSize() int
	EncodeFrame(dst []byte, samples []int16, n int) (int, error)
	MD5() [16]byte
	Close() error
}

// EngineFactory creates an engine for one file.
type EngineFactory func(format flake.StreamFormat, params flake.Params) (Engine, error)

// NewFlakeEngine is the default EngineFactory.
func NewFlakeEngine(format flake.StreamFormat, params flake.Params) (Engine, error) {
	enc, err := flake.NewEncoder(format, params)
	if err != nil {
		return nil, err
	}

	return enc, nil
}

// FilePair is one input and its output, along with the streams opened for them.
type FilePair struct {
	Input  string
	Output string

	in  io.Closer
	out io.Closer
}

func (p *FilePair) close() error {
	var errs []error

	if p.in != nil {
		errs = append(errs, p.in.Close())
		p.in = nil
	}

	if p.out != nil {
		errs = append(errs, p.out.Close())
		p.out = nil
	}

	return errors.Join(errs...)
}

// Batch owns the configuration and every file pair of one invocation.
// Close must be called once the batch is done, whatever the outcome.
type Batch struct {
	Config options.Config
	Pairs  []*FilePair
}

// New builds a batch from a resolved command line.
func New(res *options.Resolution) *Batch {
	b := &Batch{
		Config: res.Config,
		Pairs:  make([]*FilePair, len(res.Files)),
	}

	for i, f := range res.Files {
		b.Pairs[i] = &FilePair{Input: f.Input, Output: f.Output}
	}

	return b
}

// Close releases every stream still held by the batch.
func (b *Batch) Close() error {
	var errs []error

	for _, p := range b.Pairs {
		errs = append(errs, p.close())
	}

	b.Pairs = nil

	return errors.Join(errs...)
}
