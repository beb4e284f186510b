package perf

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/probelab/vigil/stats"
)

// Options configures a Counter.
type Options struct {
	// SampleCap bounds the retained sample log. Once full, new samples
	// displace the oldest in arrival order. Zero retains every sample
	// until Reset.
	SampleCap int
}

// Counter aggregates operation durations from many goroutines. The zero
// value is ready to use and retains every sample.
type Counter struct {
	count atomic.Int64
	total atomic.Int64 // nanoseconds
	// min holds nanoseconds+1 so that 0 can mean "no samples yet" while
	// a genuine zero-length sample still lowers it to 1.
	min atomic.Int64
	max atomic.Int64 // nanoseconds

	mu      sync.RWMutex
	samples []time.Duration
	next    int // ring cursor, used when opts.SampleCap > 0
	opts    Options
}

// NewCounter creates a Counter with the given options.
func NewCounter(opts Options) *Counter {
	return &Counter{opts: opts}
}

// Stopwatch measures one operation. Obtain one from Counter.Time and call
// Stop on every exit path; only the first Stop commits.
type Stopwatch struct {
	c     *Counter
	start time.Time
	done  atomic.Bool
}

// Time starts measuring one operation against the counter.
func (c *Counter) Time() *Stopwatch {
	return &Stopwatch{c: c, start: time.Now()}
}

// Stop commits the elapsed time exactly once and returns it. Later calls
// return 0 and record nothing, so a deferred Stop is safe alongside an
// explicit one.
func (sw *Stopwatch) Stop() time.Duration {
	if sw == nil || !sw.done.CompareAndSwap(false, true) {
		return 0
	}
	d := time.Since(sw.start)
	sw.c.Observe(d)
	return d
}

// Observe commits a measured duration. Negative durations count as zero.
func (c *Counter) Observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	ns := int64(d)
	c.count.Add(1)
	c.total.Add(ns)
	for {
		prev := c.min.Load()
		if prev != 0 && ns+1 >= prev {
			break
		}
		if c.min.CompareAndSwap(prev, ns+1) {
			break
		}
	}
	for {
		prev := c.max.Load()
		if ns <= prev {
			break
		}
		if c.max.CompareAndSwap(prev, ns) {
			break
		}
	}

	c.mu.Lock()
	if limit := c.opts.SampleCap; limit > 0 && len(c.samples) >= limit {
		c.samples[c.next] = d
		c.next++
		if c.next == limit {
			c.next = 0
		}
	} else {
		c.samples = append(c.samples, d)
	}
	c.mu.Unlock()
}

// Count returns the number of committed measurements.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

// Total returns the sum of all committed durations.
func (c *Counter) Total() time.Duration {
	return time.Duration(c.total.Load())
}

// Min returns the smallest committed duration, 0 when empty.
func (c *Counter) Min() time.Duration {
	v := c.min.Load()
	if v == 0 {
		return 0
	}
	return time.Duration(v - 1)
}

// Max returns the largest committed duration, 0 when empty.
func (c *Counter) Max() time.Duration {
	return time.Duration(c.max.Load())
}

// Mean returns Total divided by Count, 0 when empty.
func (c *Counter) Mean() time.Duration {
	n := c.count.Load()
	if n == 0 {
		return 0
	}
	return time.Duration(c.total.Load() / n)
}

// Percentile returns the p-th percentile of the retained samples using
// linear interpolation between order statistics. p is clamped to
// [0, 100]; an empty counter yields 0.
func (c *Counter) Percentile(p float64) time.Duration {
	cp := c.Samples()
	if len(cp) == 0 {
		return 0
	}
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return stats.PercentileDurationsSorted(cp, p)
}

// Samples returns a copy of the retained sample log. Order follows
// arrival until a capped log wraps; after that it is unspecified.
func (c *Counter) Samples() []time.Duration {
	c.mu.RLock()
	if len(c.samples) == 0 {
		c.mu.RUnlock()
		return nil
	}
	cp := make([]time.Duration, len(c.samples))
	copy(cp, c.samples)
	c.mu.RUnlock()
	return cp
}

// Reset clears the aggregates and the sample log. Measurements committed
// concurrently with Reset may land on either side of the wipe; the
// counter itself stays consistent.
func (c *Counter) Reset() {
	c.mu.Lock()
	c.samples = c.samples[:0]
	c.next = 0
	c.count.Store(0)
	c.total.Store(0)
	c.min.Store(0)
	c.max.Store(0)
	c.mu.Unlock()
}
