package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/probelab/vigil/internal/workload"
	"github.com/probelab/vigil/perf"
)

// LiveSource yields point-in-time statistics for a run in flight.
// *workload.Runner satisfies it.
type LiveSource interface {
	Live() workload.Live
}

// DataPoint is one sampled observation of a running probe. The JSON field
// names are part of the HTML report contract; the embedded charts read them
// by name.
type DataPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	TotalOps     int64     `json:"total_ops"`
	Errors       int64     `json:"errors"`
	OpsPerSec    float64   `json:"ops_per_sec"`
	ActiveAllocs int       `json:"active_allocs"`
	ActiveBytes  int64     `json:"active_bytes"`
	Chunks       int       `json:"chunks"`
	P50Ms        float64   `json:"p50_latency_ms"`
	P95Ms        float64   `json:"p95_latency_ms"`
	P99Ms        float64   `json:"p99_latency_ms"`
}

// ProgressReporter displays real-time progress updates and retains every
// sample it takes, so the same series can back the HTML report's charts.
type ProgressReporter struct {
	source   LiveSource
	latency  *perf.Counter
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32

	mu      sync.Mutex
	history []DataPoint
}

// NewProgressReporter creates a progress reporter that samples source at the
// given interval. latency may be nil; the percentile columns then stay zero.
func NewProgressReporter(source LiveSource, latency *perf.Counter, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		source:   source,
		latency:  latency,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

// History returns the samples collected so far, oldest first.
func (p *ProgressReporter) History() []DataPoint {
	p.mu.Lock()
	out := make([]DataPoint, len(p.history))
	copy(out, p.history)
	p.mu.Unlock()
	return out
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			point := p.sample()
			line := fmt.Sprintf("\rOps: %d | Failures: %d | Ops/sec: %.1f | Arena: %s in %d chunks",
				point.TotalOps, point.Errors, point.OpsPerSec,
				humanBytes(point.ActiveBytes), point.Chunks)
			if point.P99Ms > 0 {
				line += fmt.Sprintf(" | P99 %.1fms", point.P99Ms)
			}
			fmt.Fprint(p.writer, line)
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) sample() DataPoint {
	live := p.source.Live()
	point := DataPoint{
		Timestamp:    time.Now(),
		TotalOps:     live.Total,
		Errors:       live.Errors,
		OpsPerSec:    live.OpsPerSec,
		ActiveAllocs: live.Memory.Arena.ActiveAllocs,
		ActiveBytes:  live.Memory.Arena.ActiveBytes,
		Chunks:       live.Memory.Arena.Chunks,
	}
	if p.latency != nil {
		snap := p.latency.Snapshot()
		point.P50Ms = snap.P50Ms
		point.P95Ms = snap.P95Ms
		point.P99Ms = snap.P99Ms
	}
	p.mu.Lock()
	p.history = append(p.history, point)
	p.mu.Unlock()
	return point
}
