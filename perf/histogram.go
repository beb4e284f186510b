package perf

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram records durations into an HDR histogram at microsecond
// resolution: constant memory at a configured precision, for soak runs
// where retaining raw samples is too expensive. Quantiles come from the
// histogram buckets instead of exact order statistics.
type Histogram struct {
	mu sync.Mutex
	h  *hdrhistogram.Histogram
}

// NewHistogram tracks durations between lowest and highest with sigfigs
// significant figures. Out-of-range recordings clamp to the nearest
// trackable value.
func NewHistogram(lowest, highest time.Duration, sigfigs int) *Histogram {
	lo := lowest.Microseconds()
	if lo < 1 {
		lo = 1
	}
	hi := highest.Microseconds()
	if hi <= lo {
		hi = lo + 1
	}
	return &Histogram{h: hdrhistogram.New(lo, hi, sigfigs)}
}

// Record commits one duration. Negative durations count as zero.
func (h *Histogram) Record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	us := d.Microseconds()
	h.mu.Lock()
	if us < h.h.LowestTrackableValue() {
		us = h.h.LowestTrackableValue()
	}
	if us > h.h.HighestTrackableValue() {
		us = h.h.HighestTrackableValue()
	}
	_ = h.h.RecordValue(us)
	h.mu.Unlock()
}

// Count returns the number of recorded durations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.h.TotalCount()
}

// Min returns the smallest recorded duration, 0 when empty.
func (h *Histogram) Min() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.h.Min()) * time.Microsecond
}

// Max returns the largest recorded duration, 0 when empty.
func (h *Histogram) Max() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.h.Max()) * time.Microsecond
}

// Mean returns the mean recorded duration, 0 when empty.
func (h *Histogram) Mean() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.h.Mean() * float64(time.Microsecond))
}

// Quantile returns the duration at quantile q in [0, 100], 0 when empty.
func (h *Histogram) Quantile(q float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.h.ValueAtQuantile(q)) * time.Microsecond
}

// Snapshot returns the histogram's aggregates in the shape counters
// report. Percentiles come from the bucketed quantiles and Total is
// reconstructed as mean times count, so both carry the histogram's
// configured precision rather than exact arithmetic.
func (h *Histogram) Snapshot() Snapshot {
	h.mu.Lock()
	var s Snapshot
	if total := h.h.TotalCount(); total > 0 {
		s.Count = total
		s.Min = time.Duration(h.h.Min()) * time.Microsecond
		s.Max = time.Duration(h.h.Max()) * time.Microsecond
		s.Mean = time.Duration(h.h.Mean() * float64(time.Microsecond))
		s.Total = time.Duration(float64(total) * h.h.Mean() * float64(time.Microsecond))
		s.P50 = time.Duration(h.h.ValueAtQuantile(50)) * time.Microsecond
		s.P90 = time.Duration(h.h.ValueAtQuantile(90)) * time.Microsecond
		s.P95 = time.Duration(h.h.ValueAtQuantile(95)) * time.Microsecond
		s.P99 = time.Duration(h.h.ValueAtQuantile(99)) * time.Microsecond
	}
	h.mu.Unlock()

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

// Reset discards all recorded values, keeping the configured range.
func (h *Histogram) Reset() {
	h.mu.Lock()
	h.h.Reset()
	h.mu.Unlock()
}
