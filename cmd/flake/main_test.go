package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mycophonic/flake/version"
)

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	code := run(context.Background(), append([]string{"flake"}, args...), strings.NewReader(""), &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func TestHelpExitsZero(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := execute(t, "-h")
	if code != 0 {
		t.Errorf("exit code %d", code)
	}

	if !strings.Contains(stdout, "[-0 ... -12]") || !strings.Contains(stdout, "12 = -b 4608") {
		t.Errorf("help not on stdout:\n%s", stdout)
	}

	if !strings.Contains(stderr, "Flake: FLAC audio encoder\nversion "+version.String()+"\n") {
		t.Errorf("banner missing:\n%s", stderr)
	}
}

func TestUsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args   []string
		reason string
	}{
		{nil, "no input files"},
		{[]string{"-x", "a.wav"}, "invalid option: -x"},
		{[]string{"a.wav", "-b"}, "incomplete option: -b"},
		{[]string{"-b", "12x", "a.wav"}, "invalid digit: x"},
		{[]string{"a.wav", "b.wav", "-o", "c.flac"}, "multiple input files"},
		{[]string{"a.wav", "-o", "a.wav"}, "cannot match input"},
	}

	for _, tc := range tests {
		code, stdout, stderr := execute(t, tc.args...)
		if code != 1 {
			t.Errorf("%v: exit code %d", tc.args, code)
		}

		if stdout != "" {
			t.Errorf("%v: unexpected stdout %q", tc.args, stdout)
		}

		if !strings.Contains(stderr, "usage: flake") || !strings.Contains(stderr, tc.reason) {
			t.Errorf("%v: stderr:\n%s", tc.args, stderr)
		}
	}
}

func TestEncodeFile(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "tone.wav")

	f, err := os.Create(in)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]int, 2*4000)
	for i := range data {
		data[i] = (i * 37) % 2000
	}

	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	if err := enc.Write(&audio.IntBuffer{Format: &audio.Format{NumChannels: 2, SampleRate: 44100}, Data: data}); err != nil {
		t.Fatal(err)
	}

	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := execute(t, "-q", "-8", in)
	if code != 0 {
		t.Fatalf("exit code %d:\n%s", code, stderr)
	}

	if stderr != "" {
		t.Errorf("quiet run printed:\n%s", stderr)
	}

	out, err := os.ReadFile(strings.TrimSuffix(in, ".wav") + ".flac")
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.HasPrefix(out, []byte("fLaC")) {
		t.Errorf("output is not a FLAC stream")
	}
}

func TestEncodeFromStdin(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	data := make([]int, 1000)
	for i := range data {
		data[i] = (i * 13) % 500
	}

	enc := wav.NewEncoder(f, 8000, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: 8000}, Data: data}); err != nil {
		t.Fatal(err)
	}

	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"flake", "-q", "-", "-o", "-"}, bytes.NewReader(raw), &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d:\n%s", code, stderr.String())
	}

	if !bytes.HasPrefix(stdout.Bytes(), []byte("fLaC")) {
		t.Errorf("stdout is not a FLAC stream")
	}
}

func TestMissingInputFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	code, _, stderr := execute(t, filepath.Join(dir, "missing.wav"))
	if code != 1 {
		t.Errorf("exit code %d", code)
	}

	if !strings.Contains(stderr, "encoding failed") {
		t.Errorf("stderr:\n%s", stderr)
	}
}
