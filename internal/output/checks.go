package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/probelab/vigil/internal/baseline"
	"github.com/probelab/vigil/internal/threshold"
)

// PrintThresholds outputs one line per evaluated threshold plus a tally.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	for _, res := range results {
		if res.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", passed, len(results))
	for _, res := range results {
		fmt.Fprintf(w, "  %s\n", res.Message)
	}
}

// PrintComparison outputs the deltas against a recorded baseline run.
func PrintComparison(w io.Writer, cmp baseline.Comparison) {
	fmt.Fprintf(w, "\nBaseline %s:\n", cmp.BaselineID)
	for _, d := range cmp.Deltas {
		status := "ok"
		if d.Regressed {
			status = "REGRESSED"
		}
		fmt.Fprintf(w, "  %-16s %12.2f -> %-12.2f %-14s %s\n",
			d.Field+":", d.Baseline, d.Current, formatChange(d), status)
	}
}

// formatChange renders ratio deltas as percentages and leak deltas as raw
// differences, matching how Compare judged them.
func formatChange(d baseline.Delta) string {
	if strings.HasPrefix(d.Field, "leaks.") {
		return fmt.Sprintf("%+g", d.Change)
	}
	pct := d.Change * 100
	switch {
	case pct == 0:
		return "unchanged"
	case pct < 0:
		return fmt.Sprintf("%.1f%% better", -pct)
	default:
		return fmt.Sprintf("%.1f%% worse", pct)
	}
}
