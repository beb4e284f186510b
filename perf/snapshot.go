package perf

import (
	"sort"
	"time"

	"github.com/probelab/vigil/stats"
)

// Snapshot is a point-in-time aggregate of one counter, shaped for
// reports: durations for code, millisecond floats for JSON.
type Snapshot struct {
	Name  string        `json:"name,omitempty"`
	Count int64         `json:"count"`
	Total time.Duration `json:"-"`
	Min   time.Duration `json:"-"`
	Max   time.Duration `json:"-"`
	Mean  time.Duration `json:"-"`
	P50   time.Duration `json:"-"`
	P90   time.Duration `json:"-"`
	P95   time.Duration `json:"-"`
	P99   time.Duration `json:"-"`

	// JSON-friendly millisecond fields.
	TotalMs float64 `json:"total_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	MeanMs  float64 `json:"mean_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P90Ms   float64 `json:"p90_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
}

// Snapshot returns the counter's current aggregates and percentiles. All
// percentiles are derived from one copy of the sample log, so they are
// mutually consistent even while measurements keep arriving.
func (c *Counter) Snapshot() Snapshot {
	s := Snapshot{
		Count: c.Count(),
		Total: c.Total(),
		Min:   c.Min(),
		Max:   c.Max(),
		Mean:  c.Mean(),
	}

	if cp := c.Samples(); len(cp) > 0 {
		sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
		s.P50 = stats.PercentileDurationsSorted(cp, 50)
		s.P90 = stats.PercentileDurationsSorted(cp, 90)
		s.P95 = stats.PercentileDurationsSorted(cp, 95)
		s.P99 = stats.PercentileDurationsSorted(cp, 99)
	}

	s.TotalMs = ms(s.Total)
	s.MinMs = ms(s.Min)
	s.MaxMs = ms(s.Max)
	s.MeanMs = ms(s.Mean)
	s.P50Ms = ms(s.P50)
	s.P90Ms = ms(s.P90)
	s.P95Ms = ms(s.P95)
	s.P99Ms = ms(s.P99)
	return s
}

// WithQuantiles returns a copy of s whose percentile fields come from h.
// A counter with a capped sample log keeps exact count, min, max and
// mean but loses old samples; pairing it with a histogram restores
// full-run percentiles. s is returned unchanged when h is nil or empty.
func (s Snapshot) WithQuantiles(h *Histogram) Snapshot {
	if h == nil || h.Count() == 0 {
		return s
	}
	s.P50 = h.Quantile(50)
	s.P90 = h.Quantile(90)
	s.P95 = h.Quantile(95)
	s.P99 = h.Quantile(99)
	s.P50Ms = ms(s.P50)
	s.P90Ms = ms(s.P90)
	s.P95Ms = ms(s.P95)
	s.P99Ms = ms(s.P99)
	return s
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
