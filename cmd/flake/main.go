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

// flake encodes WAV files to FLAC.
//
// Usage:
//
//	flake [options] <input.wav> [<input.wav> ...] [-o output.flac]
//
// Run flake -h for the list of options.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/mycophonic/flake/internal/batch"
	"github.com/mycophonic/flake/internal/options"
	"github.com/mycophonic/flake/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	code := 0

	// Options are single-dash and positional, so the resolver sees argv untouched.
	cmd := &cli.Command{
		Name:            version.Name(),
		Usage:           "FLAC audio encoder",
		Version:         version.String(),
		HideHelp:        true,
		HideHelpCommand: true,
		HideVersion:     true,
		SkipFlagParsing: true,
		Reader:          stdin,
		Writer:          stdout,
		ErrWriter:       stderr,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			code = encode(ctx, cmd)

			return nil
		},
	}

	if err := cmd.Run(ctx, args); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	return code
}

func encode(ctx context.Context, cmd *cli.Command) int {
	stdout, stderr := cmd.Writer, cmd.ErrWriter

	res, err := options.Resolve(cmd.Args().Slice())

	quiet := res != nil && res.Config.Quiet
	if !quiet {
		_, _ = fmt.Fprintf(stderr, "\nFlake: %s\nversion %s\n\n", cmd.Usage, cmd.Version)
	}

	switch {
	case errors.Is(err, options.ErrHelp):
		options.PrintHelp(stdout)

		return 0
	case err != nil:
		options.PrintUsage(stderr)
		_, _ = fmt.Fprintf(stderr, "%v\n", err)

		return 1
	}

	level := slog.LevelInfo
	if quiet {
		level = slog.LevelWarn
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}

			return a
		},
	}))

	b := batch.New(res)
	defer func() { _ = b.Close() }()

	runner := &batch.Runner{
		Stdin:  cmd.Reader,
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
	}

	if _, err := runner.Run(ctx, b); err != nil {
		logger.Error("encoding failed", "error", err)

		return 1
	}

	return 0
}
