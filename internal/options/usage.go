package options

import (
	"fmt"
	"io"
	"strings"

	"github.com/mycophonic/flake"
)

const usageLine = "usage: flake [options] <input.wav> [-o output.flac]"

// PrintUsage writes the short usage shown after a command line error.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, "%s\ntype 'flake -h' for more details.\n\n", usageLine)
}

// PrintHelp writes the full option list, including the preset table.
func PrintHelp(w io.Writer) {
	var b strings.Builder

	b.WriteString(usageLine + "\noptions:\n")
	b.WriteString("       [-h]         Print out list of commandline options\n")
	b.WriteString("       [-q]         Quiet mode\n")
	fmt.Fprintf(&b, "       [-p #]       Padding bytes to put in header (default: %d)\n", flake.DefaultPadding)
	fmt.Fprintf(&b, "       [-0 ... -12] Compression level (default: %d)\n", flake.DefaultLevel)

	for level := flake.MinLevel; level <= flake.MaxLevel; level++ {
		p, _ := flake.Preset(level)
		fmt.Fprintf(&b, "                       %2d = -b %d -t %d -l %-5s -m %d -r %-3s -s %d\n",
			level, p.BlockSize, p.PredictionType,
			orderRange(p.MinPredictionOrder, p.MaxPredictionOrder, 1),
			p.OrderMethod,
			orderRange(p.MinPartitionOrder, p.MaxPartitionOrder, 0),
			p.StereoMethod)
	}

	fmt.Fprintf(&b, "       [-b #]       Block size [%d - %d] (default: 4608)\n", flake.MinBlockSize, flake.MaxBlockSize)
	b.WriteString("                        0 = choose from block time\n")
	b.WriteString("       [-t #]       Prediction type\n")
	b.WriteString("                        0 = no prediction / verbatim\n")
	b.WriteString("                        1 = fixed prediction\n")
	b.WriteString("                        2 = Levinson-Durbin recursion (default)\n")
	b.WriteString("       [-l #[,#]]   Prediction order {max} or {min},{max} (default: 1,8)\n")
	b.WriteString("       [-m #]       Prediction order selection method\n")

	for m := flake.OrderMax; m <= flake.OrderLog; m++ {
		def := ""
		if m == flake.OrderEstimate {
			def = " (default)"
		}

		fmt.Fprintf(&b, "                        %d = %s%s\n", m, m, def)
	}

	b.WriteString("       [-r #[,#]]   Rice partition order {max} or {min},{max} (default: 0,6)\n")
	b.WriteString("       [-s #]       Stereo decorrelation method\n")
	b.WriteString("                        0 = independent L+R channels\n")
	b.WriteString("                        1 = mid-side (default)\n")
	b.WriteString("       [-v #]       Variable block size\n")
	b.WriteString("                        0 = fixed (default)\n")
	b.WriteString("                        1 = variable, method 1\n")
	b.WriteString("                        2 = variable, method 2\n\n")

	_, _ = io.WriteString(w, b.String())
}

// orderRange renders a bound pair the short way when min is the implied one.
func orderRange(lo, hi, implied int) string {
	if lo == implied && lo != hi {
		return fmt.Sprint(hi)
	}

	return fmt.Sprintf("%d,%d", lo, hi)
}
