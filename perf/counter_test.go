package perf_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/probelab/vigil/perf"
)

func TestEmptyCounterReturnsZeros(t *testing.T) {
	var c perf.Counter

	if got := c.Count(); got != 0 {
		t.Errorf("expected count 0, got %d", got)
	}
	if got := c.Total(); got != 0 {
		t.Errorf("expected total 0, got %s", got)
	}
	if got := c.Min(); got != 0 {
		t.Errorf("expected min 0, got %s", got)
	}
	if got := c.Max(); got != 0 {
		t.Errorf("expected max 0, got %s", got)
	}
	if got := c.Mean(); got != 0 {
		t.Errorf("expected mean 0, got %s", got)
	}
	if got := c.Percentile(99); got != 0 {
		t.Errorf("expected p99 0, got %s", got)
	}
}

func TestSingleMeasurement(t *testing.T) {
	var c perf.Counter
	c.Observe(25 * time.Millisecond)

	if got := c.Count(); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
	if got := c.Min(); got != 25*time.Millisecond {
		t.Errorf("expected min 25ms, got %s", got)
	}
	if got := c.Max(); got != 25*time.Millisecond {
		t.Errorf("expected max 25ms, got %s", got)
	}
	if got := c.Total(); got != 25*time.Millisecond {
		t.Errorf("expected total 25ms, got %s", got)
	}
	if got := c.Mean(); got != 25*time.Millisecond {
		t.Errorf("expected mean 25ms, got %s", got)
	}
}

func TestAggregatesOverKnownSamples(t *testing.T) {
	var c perf.Counter

	// Record deterministic durations.
	for _, d := range []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		150 * time.Millisecond,
		200 * time.Millisecond,
		250 * time.Millisecond,
	} {
		c.Observe(d)
	}

	if got := c.Count(); got != 5 {
		t.Errorf("expected count 5, got %d", got)
	}
	if got := c.Min(); got != 50*time.Millisecond {
		t.Errorf("expected min 50ms, got %s", got)
	}
	if got := c.Max(); got != 250*time.Millisecond {
		t.Errorf("expected max 250ms, got %s", got)
	}
	if got := c.Mean(); got != 150*time.Millisecond {
		t.Errorf("expected mean 150ms, got %s", got)
	}
	if got := c.Total(); got != 750*time.Millisecond {
		t.Errorf("expected total 750ms, got %s", got)
	}
	if got := c.Percentile(50); got != 150*time.Millisecond {
		t.Errorf("expected p50 150ms, got %s", got)
	}
	if got := c.Percentile(0); got != 50*time.Millisecond {
		t.Errorf("expected p0 50ms, got %s", got)
	}
	if got := c.Percentile(100); got != 250*time.Millisecond {
		t.Errorf("expected p100 250ms, got %s", got)
	}
}

func TestZeroDurationStillCounts(t *testing.T) {
	var c perf.Counter
	c.Observe(0)
	c.Observe(10 * time.Millisecond)

	if got := c.Count(); got != 2 {
		t.Errorf("expected count 2, got %d", got)
	}
	if got := c.Min(); got != 0 {
		t.Errorf("expected min 0, got %s", got)
	}
	if got := c.Max(); got != 10*time.Millisecond {
		t.Errorf("expected max 10ms, got %s", got)
	}
}

func TestNegativeDurationClampsToZero(t *testing.T) {
	var c perf.Counter
	c.Observe(-5 * time.Millisecond)

	if got := c.Count(); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
	if got := c.Total(); got != 0 {
		t.Errorf("expected total 0, got %s", got)
	}
}

func TestPercentileMonotone(t *testing.T) {
	var c perf.Counter
	for i := 1; i <= 100; i++ {
		c.Observe(time.Duration(i) * time.Millisecond)
	}

	prev := time.Duration(-1)
	for p := 0.0; p <= 100; p += 5 {
		got := c.Percentile(p)
		if got < prev {
			t.Fatalf("p%.0f = %s below p%.0f = %s", p, got, p-5, prev)
		}
		prev = got
	}
	// P90 of 1..100ms interpolates between the 90th and 91st samples.
	if got := c.Percentile(90); got < 90*time.Millisecond || got > 91*time.Millisecond {
		t.Errorf("expected p90 ~90ms, got %s", got)
	}
}

func TestStopwatchCommitsOnce(t *testing.T) {
	var c perf.Counter

	sw := c.Time()
	time.Sleep(5 * time.Millisecond)
	d := sw.Stop()
	if d < 5*time.Millisecond {
		t.Errorf("expected stopwatch to measure at least 5ms, got %s", d)
	}
	if again := sw.Stop(); again != 0 {
		t.Errorf("expected second Stop to return 0, got %s", again)
	}
	if got := c.Count(); got != 1 {
		t.Errorf("expected count 1 after double Stop, got %d", got)
	}
}

func TestStopwatchDeferredPattern(t *testing.T) {
	var c perf.Counter

	func() {
		defer c.Time().Stop()
		time.Sleep(time.Millisecond)
	}()

	if got := c.Count(); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
	if got := c.Min(); got < time.Millisecond {
		t.Errorf("expected at least 1ms, got %s", got)
	}
}

func TestSampleCapBoundsRetention(t *testing.T) {
	c := perf.NewCounter(perf.Options{SampleCap: 10})
	for i := 1; i <= 100; i++ {
		c.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := len(c.Samples()); got != 10 {
		t.Errorf("expected 10 retained samples, got %d", got)
	}
	// Aggregates stay lifetime-accurate.
	if got := c.Count(); got != 100 {
		t.Errorf("expected count 100, got %d", got)
	}
	if got := c.Min(); got != time.Millisecond {
		t.Errorf("expected min 1ms, got %s", got)
	}
	if got := c.Max(); got != 100*time.Millisecond {
		t.Errorf("expected max 100ms, got %s", got)
	}
	// Only the most recent samples remain: 91..100ms.
	if got := c.Percentile(0); got != 91*time.Millisecond {
		t.Errorf("expected retained minimum 91ms, got %s", got)
	}
}

func TestReset(t *testing.T) {
	var c perf.Counter
	c.Observe(30 * time.Millisecond)
	c.Observe(60 * time.Millisecond)
	c.Reset()

	if got := c.Count(); got != 0 {
		t.Errorf("expected count 0 after reset, got %d", got)
	}
	if got := c.Min(); got != 0 {
		t.Errorf("expected min 0 after reset, got %s", got)
	}
	if got := c.Max(); got != 0 {
		t.Errorf("expected max 0 after reset, got %s", got)
	}
	if got := len(c.Samples()); got != 0 {
		t.Errorf("expected no samples after reset, got %d", got)
	}

	// The counter keeps working after a reset.
	c.Observe(5 * time.Millisecond)
	if got := c.Count(); got != 1 {
		t.Errorf("expected count 1, got %d", got)
	}
	if got := c.Min(); got != 5*time.Millisecond {
		t.Errorf("expected min 5ms, got %s", got)
	}
}

func TestConcurrentTiming(t *testing.T) {
	var c perf.Counter

	var wg sync.WaitGroup
	workers := 10
	opsPerWorker := 100

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerWorker; j++ {
				sw := c.Time()
				sw.Stop()
			}
		}()
	}
	wg.Wait()

	expected := int64(workers * opsPerWorker)
	if got := c.Count(); got != expected {
		t.Errorf("expected count %d, got %d", expected, got)
	}
	if got := int64(len(c.Samples())); got != expected {
		t.Errorf("expected %d samples, got %d", expected, got)
	}
	if c.Min() > c.Max() {
		t.Errorf("min %s above max %s", c.Min(), c.Max())
	}
}

func TestSnapshotJSONSchema(t *testing.T) {
	var c perf.Counter
	c.Observe(15 * time.Millisecond)
	c.Observe(25 * time.Millisecond)

	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	requiredFields := []string{"count", "total_ms", "min_ms", "max_ms", "mean_ms", "p50_ms", "p90_ms", "p95_ms", "p99_ms"}
	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestSnapshotConsistency(t *testing.T) {
	var c perf.Counter
	for _, d := range []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		150 * time.Millisecond,
		200 * time.Millisecond,
		250 * time.Millisecond,
	} {
		c.Observe(d)
	}

	s := c.Snapshot()
	if s.Count != 5 {
		t.Errorf("expected count 5, got %d", s.Count)
	}
	if s.Mean != 150*time.Millisecond {
		t.Errorf("expected mean 150ms, got %s", s.Mean)
	}
	if s.P50 != 150*time.Millisecond {
		t.Errorf("expected p50 150ms, got %s", s.P50)
	}
	if s.P50 > s.P90 || s.P90 > s.P95 || s.P95 > s.P99 {
		t.Errorf("percentiles not monotone: %s %s %s %s", s.P50, s.P90, s.P95, s.P99)
	}
	if s.MeanMs != 150 {
		t.Errorf("expected mean_ms 150, got %v", s.MeanMs)
	}
}
