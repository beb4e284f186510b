package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/internal/workload"
	"github.com/probelab/vigil/perf"
)

type stubSource struct {
	live workload.Live
}

func (s *stubSource) Live() workload.Live { return s.live }

func testLive() workload.Live {
	return workload.Live{
		Elapsed:   time.Second,
		ElapsedMs: 1000,
		Total:     42,
		Errors:    2,
		OpsPerSec: 42.0,
		Memory: arena.RegistryStats{
			InUse: 2,
			Arena: arena.Stats{
				ActiveAllocs: 10,
				ActiveBytes:  640,
				Chunks:       3,
			},
		},
	}
}

func TestProgressReporterBasic(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&stubSource{live: testLive()}, nil, 100*time.Millisecond, &buf)

	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}

	// Stop before Start is a no-op.
	reporter.Stop()
}

func TestProgressReporterFormatting(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&stubSource{live: testLive()}, nil, 20*time.Millisecond, &buf)
	reporter.Start()

	time.Sleep(70 * time.Millisecond)
	reporter.Stop()

	output := buf.String()
	if !strings.Contains(output, "Ops: 42") {
		t.Errorf("Expected 'Ops: 42' in progress output, got %q", output)
	}
	if !strings.Contains(output, "Ops/sec: 42.0") {
		t.Errorf("Expected throughput in progress output, got %q", output)
	}
	if !strings.Contains(output, "in 3 chunks") {
		t.Errorf("Expected arena occupancy in progress output, got %q", output)
	}
}

func TestProgressReporterHistory(t *testing.T) {
	latency := perf.NewCounter(perf.Options{})
	for i := 1; i <= 20; i++ {
		latency.Observe(time.Duration(i) * time.Millisecond)
	}

	reporter := NewProgressReporter(&stubSource{live: testLive()}, latency, 20*time.Millisecond, nil)
	reporter.Start()

	time.Sleep(70 * time.Millisecond)
	reporter.Stop()

	history := reporter.History()
	if len(history) == 0 {
		t.Fatal("Expected at least one sample in history")
	}

	point := history[0]
	if point.TotalOps != 42 {
		t.Errorf("TotalOps = %d, want 42", point.TotalOps)
	}
	if point.ActiveBytes != 640 {
		t.Errorf("ActiveBytes = %d, want 640", point.ActiveBytes)
	}
	if point.Chunks != 3 {
		t.Errorf("Chunks = %d, want 3", point.Chunks)
	}
	if point.P99Ms <= 0 {
		t.Errorf("P99Ms = %f, want > 0 when a latency counter is attached", point.P99Ms)
	}
	if point.Timestamp.IsZero() {
		t.Error("Expected sample timestamp to be set")
	}

	// History hands out a copy, not the live slice.
	history[0].TotalOps = -1
	if again := reporter.History(); again[0].TotalOps == -1 {
		t.Error("Expected History to return an independent copy")
	}
}

func TestProgressReporterStartTwice(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&stubSource{live: testLive()}, nil, 20*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start() // second Start must not spawn a second loop

	time.Sleep(50 * time.Millisecond)
	reporter.Stop()
	// A second Stop must not panic on the closed channel.
	reporter.Stop()
}
