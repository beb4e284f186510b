package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/probelab/vigil/internal/workload"
)

// maxLeakLines bounds the per-allocation leak listing in the text report.
// The full set is still available through the JSON and HTML outputs.
const maxLeakLines = 10

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, sum workload.Summary) {
	fmt.Fprintln(w, "\n--- Arena Probe Results ---")
	fmt.Fprintf(w, "Total Ops:         %d\n", sum.Total)
	fmt.Fprintf(w, "Successful:        %d\n", sum.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", sum.Failures)
	fmt.Fprintf(w, "Duration:          %s\n", sum.Duration)
	fmt.Fprintf(w, "Ops/sec:           %.2f\n", sum.OpsPerSec)
	fmt.Fprintln(w, "\nOp Latency:")
	fmt.Fprintf(w, "  Min:             %s\n", sum.Latency.Min)
	fmt.Fprintf(w, "  Max:             %s\n", sum.Latency.Max)
	fmt.Fprintf(w, "  Mean:            %s\n", sum.Latency.Mean)
	fmt.Fprintf(w, "  P50:             %s\n", sum.Latency.P50)
	fmt.Fprintf(w, "  P90:             %s\n", sum.Latency.P90)
	fmt.Fprintf(w, "  P95:             %s\n", sum.Latency.P95)
	fmt.Fprintf(w, "  P99:             %s\n", sum.Latency.P99)

	fmt.Fprintln(w, "\nArena Memory:")
	fmt.Fprintf(w, "  Arenas:          %d in use, %d idle\n", sum.Memory.InUse, sum.Memory.Idle)
	fmt.Fprintf(w, "  Chunks:          %d\n", sum.Memory.Arena.Chunks)
	fmt.Fprintf(w, "  Capacity:        %s\n", humanBytes(int64(sum.Memory.Arena.Capacity)))
	fmt.Fprintf(w, "  Bumped:          %s (%.1f%% of capacity)\n",
		humanBytes(int64(sum.Memory.Arena.Used)), sum.Memory.Arena.Utilization*100)
	fmt.Fprintf(w, "  Lifetime:        %d allocs, %s\n",
		sum.Memory.Arena.LifetimeAllocs, humanBytes(int64(sum.Memory.Arena.LifetimeBytes)))

	writeLeaks(w, sum.Leaks)

	if len(sum.Ops) > 0 {
		fmt.Fprintln(w, "\nOp Breakdown:")
		ops := make([]workload.OpStats, len(sum.Ops))
		copy(ops, sum.Ops)
		sort.Slice(ops, func(i, j int) bool {
			return ops[i].Count > ops[j].Count
		})
		for _, op := range ops {
			share := 0.0
			if sum.Total > 0 {
				share = (float64(op.Count) / float64(sum.Total)) * 100
			}
			fmt.Fprintf(
				w,
				"  - %s: ops=%d (%.1f%%), failures=%d, mean=%s, p99=%s\n",
				op.Name,
				op.Count,
				share,
				op.Failures,
				op.Mean,
				op.P99,
			)
		}
	}

	if len(sum.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		kinds := make([]string, 0, len(sum.Errors))
		for kind := range sum.Errors {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(w, "  - %s: %d\n", kind, sum.Errors[kind])
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, sum workload.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func writeLeaks(w io.Writer, leaks workload.LeakStats) {
	fmt.Fprintln(w, "\nLeaked Allocations:")
	if leaks.Count == 0 {
		fmt.Fprintln(w, "  None")
		return
	}
	fmt.Fprintf(w, "  Count:           %d (%s across %d arenas)\n",
		leaks.Count, humanBytes(leaks.Bytes), leaks.Arenas)
	fmt.Fprintf(w, "  Oldest:          %s\n", leaks.Oldest)
	shown := leaks.Records
	if len(shown) > maxLeakLines {
		shown = shown[:maxLeakLines]
	}
	for _, rec := range shown {
		fmt.Fprintf(w, "  - %s: %s, age %.1fms\n",
			rec.Addr, humanBytes(int64(rec.Size)), rec.AgeMs)
	}
	if rest := leaks.Count - len(shown); rest > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", rest)
	}
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
