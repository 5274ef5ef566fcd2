package batch

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mycophonic/flake"
	"github.com/mycophonic/flake/internal/wavin"
)

func TestDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		samples uint64
		rate    int
		want    string
	}{
		{44100, 44100, "0m1.000s"},
		{22050, 44100, "0m0.500s"},
		{44100 * 61, 44100, "1m1.000s"},
		{48000*3723 + 24, 48000, "1h2m3.000s"},
		{1, 1000, "0m0.001s"},
	}

	for _, tc := range tests {
		if got := duration(tc.samples, tc.rate); got != tc.want {
			t.Errorf("duration(%d, %d): expected %q, got %q", tc.samples, tc.rate, tc.want, got)
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		info wavin.Info
		want string
	}{
		{wavin.Info{Channels: 2, SampleRate: 44100, BitWidth: 16}, "Signed 16-bit 44100 Hz stereo"},
		{wavin.Info{Channels: 1, SampleRate: 8000, BitWidth: 8}, "Unsigned 8-bit 8000 Hz mono"},
		{wavin.Info{Channels: 6, SampleRate: 48000, BitWidth: 24}, "Signed 24-bit 48000 Hz 6-channel"},
	}

	for _, tc := range tests {
		if got := describe(tc.info); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	st := &stats{rate: 1000, blockAlign: 4, total: 2000, bytes: 100}

	if st.add(500, 400) {
		t.Error("no whole second elapsed yet")
	}

	if !st.add(500, 400) {
		t.Error("expected a tick after one second")
	}

	if st.add(200, 100) {
		t.Error("second 1 already reported")
	}

	if got := st.percent(); got != 60 {
		t.Errorf("percent: expected 60, got %d", got)
	}

	// 1000 bytes for 1200 frames of 4 bytes.
	if got := st.ratio(); got < 0.2083 || got > 0.2084 {
		t.Errorf("ratio: got %f", got)
	}

	// 8 kbit over 1.2 s.
	if got := st.kbps(); got < 6.66 || got > 6.67 {
		t.Errorf("kbps: got %f", got)
	}

	var buf bytes.Buffer

	st.printProgress(&buf)

	if want := "\rprogress:  60% | ratio: 0.208 | bitrate:  6.7 kbps "; buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestPrintParams(t *testing.T) {
	t.Parallel()

	params, err := flake.Preset(5)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer

	printParams(&buf, &params, 2)

	want := "block size: 4608\n" +
		"variable block size: none\n" +
		"prediction type: levinson-durbin\n" +
		"prediction order: 1,8\n" +
		"partition order: 0,6\n" +
		"order method: estimate\n" +
		"stereo method: mid-side\n" +
		"header padding: 4096\n"

	if buf.String() != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, buf.String())
	}

	params.BlockSize = 0
	params.PredictionType = flake.PredictionNone
	buf.Reset()

	printParams(&buf, &params, 1)

	out := buf.String()
	if !strings.HasPrefix(out, "block time: 105ms\n") || strings.Contains(out, "order") || strings.Contains(out, "stereo") {
		t.Errorf("unexpected parameter dump:\n%s", out)
	}
}

type failingSeeker struct{ bytes.Buffer }

func (*failingSeeker) Seek(int64, int) (int64, error) {
	return 0, errors.New("illegal seek")
}

type memFile struct {
	data []byte
	pos  int
}

func (m *memFile) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}

	n := copy(m.data[m.pos:], p)
	m.pos += n

	return n, nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		m.pos = int(offset)
	case io.SeekEnd:
		m.pos = len(m.data) + int(offset)
	default:
		m.pos += int(offset)
	}

	return int64(m.pos), nil
}

func TestPatchHeader(t *testing.T) {
	t.Parallel()

	sum := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}

	f := &memFile{data: make([]byte, 100), pos: 100}

	patched, err := patchHeader(f, 0x01020304, sum)
	if err != nil || !patched {
		t.Fatalf("expected a patch, got %v, %v", patched, err)
	}

	if !bytes.Equal(f.data[22:26], []byte{1, 2, 3, 4}) || !bytes.Equal(f.data[26:42], sum[:]) {
		t.Errorf("header bytes: % x", f.data[20:44])
	}

	if f.pos != 100 || len(f.data) != 100 {
		t.Errorf("stream left at %d with %d bytes", f.pos, len(f.data))
	}

	if patched, err := patchHeader(&failingSeeker{}, 1, sum); patched || err != nil {
		t.Errorf("seek failure: expected (false, nil), got (%v, %v)", patched, err)
	}

	if patched, err := patchHeader(&bytes.Buffer{}, 1, sum); patched || err != nil {
		t.Errorf("plain writer: expected (false, nil), got (%v, %v)", patched, err)
	}
}

func TestBatchClose(t *testing.T) {
	t.Parallel()

	in, out := &closeCounter{}, &closeCounter{}
	b := &Batch{Pairs: []*FilePair{{Input: "a", Output: "b", in: in, out: out}, {Input: "c", Output: "d"}}}

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	if in.n != 1 || out.n != 1 || b.Pairs != nil {
		t.Errorf("closed %d/%d times, pairs %v", in.n, out.n, b.Pairs)
	}

	if err := b.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++

	return nil
}
