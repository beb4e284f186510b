package perf_test

import (
	"sync"
	"testing"
	"time"

	"github.com/probelab/vigil/perf"
)

func TestHistogramBasics(t *testing.T) {
	h := perf.NewHistogram(time.Microsecond, time.Minute, 3)

	if got := h.Count(); got != 0 {
		t.Errorf("expected count 0, got %d", got)
	}
	if got := h.Quantile(99); got != 0 {
		t.Errorf("expected empty p99 0, got %s", got)
	}

	for i := 1; i <= 100; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}

	if got := h.Count(); got != 100 {
		t.Errorf("expected count 100, got %d", got)
	}
	// HDR answers within its configured precision, not exactly.
	if got := h.Quantile(50); got < 49*time.Millisecond || got > 51*time.Millisecond {
		t.Errorf("expected p50 ~50ms, got %s", got)
	}
	if got := h.Quantile(99); got < 98*time.Millisecond || got > 100*time.Millisecond {
		t.Errorf("expected p99 ~99ms, got %s", got)
	}
	if got := h.Min(); got > 2*time.Millisecond {
		t.Errorf("expected min ~1ms, got %s", got)
	}
	if got := h.Max(); got < 99*time.Millisecond {
		t.Errorf("expected max ~100ms, got %s", got)
	}
	if got := h.Mean(); got < 49*time.Millisecond || got > 52*time.Millisecond {
		t.Errorf("expected mean ~50.5ms, got %s", got)
	}
}

func TestHistogramClampsOutOfRange(t *testing.T) {
	h := perf.NewHistogram(time.Millisecond, time.Second, 2)

	h.Record(-time.Second)         // below range
	h.Record(time.Microsecond)     // below range
	h.Record(10 * time.Second)     // above range
	h.Record(5 * time.Millisecond) // in range

	if got := h.Count(); got != 4 {
		t.Errorf("expected all recordings to count, got %d", got)
	}
	if got := h.Max(); got > 1100*time.Millisecond {
		t.Errorf("expected max clamped near 1s, got %s", got)
	}
}

func TestHistogramReset(t *testing.T) {
	h := perf.NewHistogram(time.Microsecond, time.Second, 3)
	h.Record(time.Millisecond)
	h.Reset()

	if got := h.Count(); got != 0 {
		t.Errorf("expected count 0 after reset, got %d", got)
	}
	if got := h.Quantile(50); got != 0 {
		t.Errorf("expected p50 0 after reset, got %s", got)
	}

	h.Record(2 * time.Millisecond)
	if got := h.Count(); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
}

func TestHistogramSnapshot(t *testing.T) {
	h := perf.NewHistogram(time.Microsecond, time.Minute, 3)

	empty := h.Snapshot()
	if empty.Count != 0 || empty.P99 != 0 || empty.MeanMs != 0 {
		t.Errorf("empty snapshot should be all zeros, got %+v", empty)
	}

	for i := 1; i <= 100; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}

	s := h.Snapshot()
	if s.Count != 100 {
		t.Errorf("expected count 100, got %d", s.Count)
	}
	if s.P50 < 49*time.Millisecond || s.P50 > 51*time.Millisecond {
		t.Errorf("expected p50 ~50ms, got %s", s.P50)
	}
	if s.P99 < 98*time.Millisecond || s.P99 > 100*time.Millisecond {
		t.Errorf("expected p99 ~99ms, got %s", s.P99)
	}
	if s.MeanMs < 49 || s.MeanMs > 52 {
		t.Errorf("expected mean ~50.5ms, got %f", s.MeanMs)
	}
	// Total is mean*count, so it lands near the true 5050ms sum.
	if s.TotalMs < 4900 || s.TotalMs > 5200 {
		t.Errorf("expected total ~5050ms, got %f", s.TotalMs)
	}
}

func TestSnapshotWithQuantiles(t *testing.T) {
	// A capped counter forgets early samples; the histogram alongside
	// keeps the whole run.
	c := perf.NewCounter(perf.Options{SampleCap: 10})
	h := perf.NewHistogram(time.Microsecond, time.Minute, 3)
	for i := 1; i <= 100; i++ {
		d := time.Duration(i) * time.Millisecond
		c.Observe(d)
		h.Record(d)
	}

	s := c.Snapshot().WithQuantiles(h)
	if s.Count != 100 {
		t.Errorf("expected count 100, got %d", s.Count)
	}
	if s.Min != time.Millisecond || s.Max != 100*time.Millisecond {
		t.Errorf("expected min/max 1ms/100ms, got %s/%s", s.Min, s.Max)
	}
	if s.P50 < 49*time.Millisecond || s.P50 > 51*time.Millisecond {
		t.Errorf("expected p50 ~50ms, got %s", s.P50)
	}
	if s.P99 < 98*time.Millisecond || s.P99 > 100*time.Millisecond {
		t.Errorf("expected p99 ~99ms, got %s", s.P99)
	}
	if s.P50Ms < 49 || s.P50Ms > 51 {
		t.Errorf("expected P50Ms ~50, got %f", s.P50Ms)
	}

	unchanged := c.Snapshot()
	if got := unchanged.WithQuantiles(nil); got.P50 != unchanged.P50 {
		t.Error("nil histogram must leave the snapshot unchanged")
	}
	empty := perf.NewHistogram(time.Microsecond, time.Minute, 3)
	if got := unchanged.WithQuantiles(empty); got.P99 != unchanged.P99 {
		t.Error("empty histogram must leave the snapshot unchanged")
	}
}

func TestHistogramConcurrentRecording(t *testing.T) {
	h := perf.NewHistogram(time.Microsecond, time.Minute, 3)

	var wg sync.WaitGroup
	workers := 10
	perWorker := 500
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				h.Record(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := h.Count(); got != int64(workers*perWorker) {
		t.Errorf("expected count %d, got %d", workers*perWorker, got)
	}
}
