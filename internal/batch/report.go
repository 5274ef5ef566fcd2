package batch

import (
	"fmt"
	"io"

	"github.com/mycophonic/flake"
	"github.com/mycophonic/flake/internal/wavin"
)

// stats accumulates what has been written for the current file.
type stats struct {
	rate       int
	blockAlign int
	total      uint64

	samples uint64
	bytes   uint64
	second  uint64
}

// add records one emitted block and reports whether a new second of audio
// was completed.
func (s *stats) add(samples, bytes int) bool {
	s.samples += uint64(samples)
	s.bytes += uint64(bytes)

	second := s.samples / uint64(s.rate)
	tick := second > s.second
	s.second = second

	return tick
}

func (s *stats) percent() int {
	if s.total == 0 {
		return 0
	}

	return int(float64(s.samples) * 100.5 / float64(s.total))
}

func (s *stats) ratio() float64 {
	return float64(s.bytes) / float64(s.samples*uint64(s.blockAlign))
}

func (s *stats) kbps() float64 {
	kb := float64(s.bytes) * 8 / 1000

	return kb / (float64(s.samples) / float64(s.rate))
}

func (s *stats) printProgress(w io.Writer) {
	fmt.Fprintf(w, "\rprogress: %3d%% | ratio: %1.3f | bitrate: %4.1f kbps ", s.percent(), s.ratio(), s.kbps())
}

// printParams dumps the resolved encoder parameters.
func printParams(w io.Writer, params *flake.Params, channels int) {
	if params.BlockSize == 0 {
		fmt.Fprintf(w, "block time: %dms\n", params.BlockTimeMS)
	} else {
		fmt.Fprintf(w, "block size: %d\n", params.BlockSize)
	}

	fmt.Fprintf(w, "variable block size: %s\n", params.VariableBlockSize)
	fmt.Fprintf(w, "prediction type: %s\n", params.PredictionType)

	if params.PredictionType != flake.PredictionNone {
		fmt.Fprintf(w, "prediction order: %d,%d\n", params.MinPredictionOrder, params.MaxPredictionOrder)
		fmt.Fprintf(w, "partition order: %d,%d\n", params.MinPartitionOrder, params.MaxPartitionOrder)
		fmt.Fprintf(w, "order method: %s\n", params.OrderMethod)
	}

	if channels == 2 { //nolint:mnd // stereo only.
		fmt.Fprintf(w, "stereo method: %s\n", params.StereoMethod)
	}

	fmt.Fprintf(w, "header padding: %d\n", params.PaddingSize)
}

// describe summarises the WAV format, e.g. "Signed 16-bit 44100 Hz stereo".
func describe(info wavin.Info) string {
	sign := "Signed"
	if info.BitWidth == 8 { //nolint:mnd // 8-bit WAV is unsigned.
		sign = "Unsigned"
	}

	var layout string

	switch info.Channels {
	case 1:
		layout = "mono"
	case 2: //nolint:mnd // stereo.
		layout = "stereo"
	default:
		layout = fmt.Sprintf("%d-channel", info.Channels)
	}

	return fmt.Sprintf("%s %d-bit %d Hz %s", sign, info.BitWidth, info.SampleRate, layout)
}

// duration renders a sample count as [Nh]Nm N.NNNs.
func duration(samples uint64, rate int) string {
	ms := uint64(float64(samples) * 1000 / float64(rate))

	secs := ms / 1000
	ms %= 1000
	mins := secs / 60
	secs %= 60
	hours := mins / 60
	mins %= 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%d.%03ds", hours, mins, secs, ms)
	}

	return fmt.Sprintf("%dm%d.%03ds", mins, secs, ms)
}
