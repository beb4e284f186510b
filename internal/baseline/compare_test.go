package baseline

import (
	"math"
	"testing"

	"github.com/probelab/vigil/internal/workload"
)

func findDelta(t *testing.T, cmp Comparison, field string) Delta {
	t.Helper()
	for _, d := range cmp.Deltas {
		if d.Field == field {
			return d
		}
	}
	t.Fatalf("No delta for field %s in %+v", field, cmp.Deltas)
	return Delta{}
}

func TestCompareDetectsLatencyRegression(t *testing.T) {
	base := NewRecord(testSummary(100, 500, 0))
	current := testSummary(150, 500, 0)

	cmp, err := Compare(base, current, 0.1)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if !cmp.Regressed {
		t.Error("Expected a 50% p99 slowdown to regress at 10% tolerance")
	}
	if cmp.BaselineID != base.ID {
		t.Errorf("BaselineID = %s, want %s", cmp.BaselineID, base.ID)
	}

	d := findDelta(t, cmp, "latency.p99_ms")
	if !d.Regressed {
		t.Error("Expected latency.p99_ms delta to be regressed")
	}
	if math.Abs(d.Change-0.5) > 1e-9 {
		t.Errorf("p99 change = %f, want 0.5", d.Change)
	}
	if d.Baseline != 100 || d.Current != 150 {
		t.Errorf("Delta values = %f -> %f, want 100 -> 150", d.Baseline, d.Current)
	}

	if len(cmp.Failures()) == 0 {
		t.Error("Expected Failures() to surface regressed deltas")
	}
}

func TestCompareWithinTolerance(t *testing.T) {
	base := NewRecord(testSummary(100, 500, 0))
	current := testSummary(105, 495, 0)

	cmp, err := Compare(base, current, 0.1)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if cmp.Regressed {
		t.Errorf("Expected a 5%% slowdown to pass at 10%% tolerance, failures: %+v", cmp.Failures())
	}
	if len(cmp.Deltas) == 0 {
		t.Error("Expected deltas to be reported even when nothing regressed")
	}
}

func TestCompareThroughputDrop(t *testing.T) {
	base := NewRecord(testSummary(100, 1000, 0))
	current := testSummary(100, 800, 0)

	cmp, err := Compare(base, current, 0.1)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	d := findDelta(t, cmp, "ops_per_sec")
	if !d.Regressed {
		t.Error("Expected a 20% throughput drop to regress at 10% tolerance")
	}
	if math.Abs(d.Change-0.2) > 1e-9 {
		t.Errorf("Throughput change = %f, want 0.2", d.Change)
	}
}

func TestCompareThroughputImprovementPasses(t *testing.T) {
	base := NewRecord(testSummary(100, 500, 0))
	current := testSummary(80, 900, 0)

	cmp, err := Compare(base, current, 0.1)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if cmp.Regressed {
		t.Errorf("Faster run flagged as regression: %+v", cmp.Failures())
	}
}

func TestCompareLeaksAreAbsolute(t *testing.T) {
	base := NewRecord(testSummary(100, 500, 0))
	current := testSummary(100, 500, 2)

	// Even an enormous tolerance does not excuse new leaks.
	cmp, err := Compare(base, current, 10.0)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if !cmp.Regressed {
		t.Error("Expected new leaks to regress regardless of tolerance")
	}
	d := findDelta(t, cmp, "leaks.count")
	if !d.Regressed || d.Change != 2 {
		t.Errorf("leaks.count delta = %+v, want regressed with change 2", d)
	}
	b := findDelta(t, cmp, "leaks.bytes")
	if !b.Regressed || b.Change != 128 {
		t.Errorf("leaks.bytes delta = %+v, want regressed with change 128", b)
	}
}

func TestCompareZeroBaselineSkipsRatioFields(t *testing.T) {
	base := NewRecord(workload.Summary{})
	current := testSummary(100, 500, 0)

	cmp, err := Compare(base, current, 0.1)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if cmp.Regressed {
		t.Errorf("Zero baseline must not flag regressions, failures: %+v", cmp.Failures())
	}
	for _, d := range cmp.Deltas {
		if d.Field == "latency.p99_ms" || d.Field == "ops_per_sec" {
			t.Errorf("Ratio field %s compared against a zero baseline", d.Field)
		}
	}
}
