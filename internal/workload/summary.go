package workload

import (
	"fmt"
	"time"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/perf"
)

// Summary is the end-of-run report: throughput, latency, per-op outcomes,
// arena memory accounting and the merged leak report.
type Summary struct {
	Total      int64         `json:"total_ops"`
	Successes  int64         `json:"successes"`
	Failures   int64         `json:"failures"`
	Duration   time.Duration `json:"-"`
	DurationMs float64       `json:"duration_ms"`
	OpsPerSec  float64       `json:"ops_per_sec"`

	Latency perf.Snapshot `json:"latency"`
	Ops     []OpStats     `json:"ops,omitempty"`

	Memory arena.RegistryStats `json:"memory"`
	Leaks  LeakStats           `json:"leaks"`

	Errors map[string]int64 `json:"errors,omitempty"`
}

// OpStats is one op's timing snapshot plus its failure count.
type OpStats struct {
	perf.Snapshot
	Failures int64 `json:"failures"`
}

// LeakStats condenses the merged leak report. Records carries at most
// maxLeakRecords entries so a pathological run cannot flood the output.
type LeakStats struct {
	Count    int           `json:"count"`
	Bytes    int64         `json:"bytes"`
	Arenas   int           `json:"arenas"`
	Oldest   time.Duration `json:"-"`
	OldestMs float64       `json:"oldest_ms"`
	Records  []LeakEntry   `json:"records,omitempty"`
}

// LeakEntry is one leaked allocation in wire form.
type LeakEntry struct {
	Addr  string  `json:"addr"`
	Size  int     `json:"size"`
	AgeMs float64 `json:"age_ms"`
}

const maxLeakRecords = 100

// Summarize folds a Result and its timing snapshots into a Summary.
// overall is the run-wide latency snapshot; ops are per-op snapshots whose
// names match the configured op names.
func Summarize(res Result, overall perf.Snapshot, ops []perf.Snapshot) Summary {
	s := Summary{
		Total:      res.Total,
		Successes:  res.Total - res.Errors,
		Failures:   res.Errors,
		Duration:   res.Duration,
		DurationMs: float64(res.Duration) / float64(time.Millisecond),
		Latency:    overall,
		Memory:     res.Memory,
		Leaks:      summarizeLeaks(res),
	}
	if res.Duration > 0 {
		s.OpsPerSec = float64(res.Total) / res.Duration.Seconds()
	}
	for _, snap := range ops {
		s.Ops = append(s.Ops, OpStats{Snapshot: snap, Failures: res.ErrorsByOp[snap.Name]})
	}
	if len(res.ErrorsByType) > 0 {
		s.Errors = res.ErrorsByType
	}
	return s
}

func summarizeLeaks(res Result) LeakStats {
	ls := LeakStats{Count: len(res.Leaks), Arenas: res.LeakArenas}
	for _, l := range res.Leaks {
		ls.Bytes += int64(l.Size)
		if l.Age > ls.Oldest {
			ls.Oldest = l.Age
		}
	}
	ls.OldestMs = float64(ls.Oldest) / float64(time.Millisecond)

	n := len(res.Leaks)
	if n > maxLeakRecords {
		n = maxLeakRecords
	}
	for _, l := range res.Leaks[:n] {
		ls.Records = append(ls.Records, LeakEntry{
			Addr:  fmt.Sprintf("%p", l.Addr),
			Size:  l.Size,
			AgeMs: float64(l.Age) / float64(time.Millisecond),
		})
	}
	return ls
}
