package threshold

import (
	"strings"
	"testing"
	"time"

	"github.com/probelab/vigil/arena"
	"github.com/probelab/vigil/internal/workload"
	"github.com/probelab/vigil/perf"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "valid p95 latency threshold",
			input: "op_duration:p95 < 5",
			want: Threshold{
				Metric:    "op_duration",
				Aggregate: "p95",
				Operator:  "<",
				Value:     5,
				Raw:       "op_duration:p95 < 5",
			},
			wantError: false,
		},
		{
			name:  "valid failure rate threshold",
			input: "op_failed:rate < 0.01",
			want: Threshold{
				Metric:    "op_failed",
				Aggregate: "rate",
				Operator:  "<",
				Value:     0.01,
				Raw:       "op_failed:rate < 0.01",
			},
			wantError: false,
		},
		{
			name:  "valid p99 latency with <=",
			input: "op_duration:p99 <= 10",
			want: Threshold{
				Metric:    "op_duration",
				Aggregate: "p99",
				Operator:  "<=",
				Value:     10,
				Raw:       "op_duration:p99 <= 10",
			},
			wantError: false,
		},
		{
			name:  "valid throughput threshold with >",
			input: "ops:rate > 100",
			want: Threshold{
				Metric:    "ops",
				Aggregate: "rate",
				Operator:  ">",
				Value:     100,
				Raw:       "ops:rate > 100",
			},
			wantError: false,
		},
		{
			name:  "valid leak count threshold",
			input: "arena_leaked:count == 0",
			want: Threshold{
				Metric:    "arena_leaked",
				Aggregate: "count",
				Operator:  "==",
				Value:     0,
				Raw:       "arena_leaked:count == 0",
			},
			wantError: false,
		},
		{
			name:  "valid avg latency",
			input: "op_duration:avg < 2",
			want: Threshold{
				Metric:    "op_duration",
				Aggregate: "avg",
				Operator:  "<",
				Value:     2,
				Raw:       "op_duration:avg < 2",
			},
			wantError: false,
		},
		{
			name:      "empty string",
			input:     "",
			wantError: true,
		},
		{
			name:      "invalid format - missing operator",
			input:     "op_duration:p95 500",
			wantError: true,
		},
		{
			name:      "invalid metric",
			input:     "invalid_metric:p95 < 500",
			wantError: true,
		},
		{
			name:      "invalid aggregate",
			input:     "op_duration:p85 < 500",
			wantError: true,
		},
		{
			name:      "invalid operator",
			input:     "op_duration:p95 << 500",
			wantError: true,
		},
		{
			name:      "invalid value - not a number",
			input:     "op_duration:p95 < abc",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("Parse() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError {
				if got.Metric != tt.want.Metric {
					t.Errorf("Parse() Metric = %v, want %v", got.Metric, tt.want.Metric)
				}
				if got.Aggregate != tt.want.Aggregate {
					t.Errorf("Parse() Aggregate = %v, want %v", got.Aggregate, tt.want.Aggregate)
				}
				if got.Operator != tt.want.Operator {
					t.Errorf("Parse() Operator = %v, want %v", got.Operator, tt.want.Operator)
				}
				if got.Value != tt.want.Value {
					t.Errorf("Parse() Value = %v, want %v", got.Value, tt.want.Value)
				}
				if got.Raw != tt.want.Raw {
					t.Errorf("Parse() Raw = %v, want %v", got.Raw, tt.want.Raw)
				}
			}
		})
	}
}

func TestParseSuggestsNearMisses(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantHit string
	}{
		{
			name:    "misspelled metric",
			input:   "op_duratoin:p95 < 5",
			wantHit: `did you mean "op_duration"`,
		},
		{
			name:    "misspelled aggregate",
			input:   "op_duration:ratee < 5",
			wantHit: `did you mean "rate"`,
		},
		{
			name:    "nothing close",
			input:   "invalid_metric:p95 < 500",
			wantHit: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatal("expected a parse error")
			}
			if tt.wantHit == "" {
				if strings.Contains(err.Error(), "did you mean") {
					t.Errorf("expected no suggestion in %q", err.Error())
				}
				return
			}
			if !strings.Contains(err.Error(), tt.wantHit) {
				t.Errorf("expected %q in %q", tt.wantHit, err.Error())
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		wantCount int
		wantError bool
	}{
		{
			name: "multiple valid thresholds",
			input: []string{
				"op_duration:p95 < 5",
				"op_failed:rate < 0.01",
				"ops:rate > 100",
			},
			wantCount: 3,
			wantError: false,
		},
		{
			name:      "empty slice",
			input:     []string{},
			wantCount: 0,
			wantError: false,
		},
		{
			name: "one valid, one invalid",
			input: []string{
				"op_duration:p95 < 5",
				"invalid threshold",
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMultiple(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ParseMultiple() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && len(got) != tt.wantCount {
				t.Errorf("ParseMultiple() returned %d thresholds, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestEvaluator(t *testing.T) {
	// Create a sample summary
	sum := workload.Summary{
		Total:     1000,
		Successes: 980,
		Failures:  20,
		Duration:  10 * time.Second,
		OpsPerSec: 100,
		Latency: perf.Snapshot{
			Count:  1000,
			Min:    10 * time.Millisecond,
			Max:    500 * time.Millisecond,
			Mean:   100 * time.Millisecond,
			P50:    80 * time.Millisecond,
			P90:    200 * time.Millisecond,
			P95:    300 * time.Millisecond,
			P99:    400 * time.Millisecond,
			MinMs:  10,
			MaxMs:  500,
			MeanMs: 100,
			P50Ms:  80,
			P90Ms:  200,
			P95Ms:  300,
			P99Ms:  400,
		},
		Memory: arena.RegistryStats{Arena: arena.Stats{Chunks: 12}},
		Leaks:  workload.LeakStats{Count: 3, Bytes: 192},
	}

	tests := []struct {
		name       string
		thresholds []string
		wantPass   []bool
	}{
		{
			name: "all thresholds pass",
			thresholds: []string{
				"op_duration:p99 < 500",
				"op_failed:rate < 0.05",
				"ops:rate > 50",
			},
			wantPass: []bool{true, true, true},
		},
		{
			name: "some thresholds fail",
			thresholds: []string{
				"op_duration:p99 < 300",
				"op_failed:rate < 0.01",
				"ops:rate > 50",
			},
			wantPass: []bool{false, false, true},
		},
		{
			name: "latency percentiles",
			thresholds: []string{
				"op_duration:p50 < 100",
				"op_duration:p90 < 250",
				"op_duration:p99 < 450",
			},
			wantPass: []bool{true, true, true},
		},
		{
			name: "avg and max latency",
			thresholds: []string{
				"op_duration:avg < 150",
				"op_duration:max < 600",
				"op_duration:min > 5",
			},
			wantPass: []bool{true, true, true},
		},
		{
			name: "failure count",
			thresholds: []string{
				"op_failed:count < 50",
			},
			wantPass: []bool{true},
		},
		{
			name: "op count",
			thresholds: []string{
				"ops:count > 900",
			},
			wantPass: []bool{true},
		},
		{
			name: "arena accounting",
			thresholds: []string{
				"arena_leaked:count == 3",
				"arena_leaked:bytes < 4096",
				"arena_chunks:count < 64",
			},
			wantPass: []bool{true, true, true},
		},
		{
			name: "leak budget exceeded",
			thresholds: []string{
				"arena_leaked:count == 0",
			},
			wantPass: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds, err := ParseMultiple(tt.thresholds)
			if err != nil {
				t.Fatalf("ParseMultiple() error = %v", err)
			}

			evaluator := NewEvaluator(thresholds)
			results := evaluator.Evaluate(sum)

			if len(results) != len(tt.wantPass) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.wantPass))
			}

			for i, result := range results {
				if result.Pass != tt.wantPass[i] {
					t.Errorf("threshold[%d] %q: got pass=%v, want %v (actual=%.2f)",
						i, result.Threshold.Raw, result.Pass, tt.wantPass[i], result.Actual)
				}
			}
		})
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		operator string
		expected float64
		want     bool
	}{
		{"less than true", 50, "<", 100, true},
		{"less than false", 100, "<", 50, false},
		{"less than equal", 100, "<", 100, false},
		{"less than or equal true", 50, "<=", 100, true},
		{"less than or equal equal", 100, "<=", 100, true},
		{"less than or equal false", 150, "<=", 100, false},
		{"greater than true", 150, ">", 100, true},
		{"greater than false", 50, ">", 100, false},
		{"greater than equal", 100, ">", 100, false},
		{"greater than or equal true", 150, ">=", 100, true},
		{"greater than or equal equal", 100, ">=", 100, true},
		{"greater than or equal false", 50, ">=", 100, false},
		{"equal true", 100, "==", 100, true},
		{"equal false", 100, "==", 101, false},
		{"equal with floating point precision", 100.0000000001, "==", 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compareValues(tt.actual, tt.operator, tt.expected)
			if got != tt.want {
				t.Errorf("compareValues(%.2f, %s, %.2f) = %v, want %v",
					tt.actual, tt.operator, tt.expected, got, tt.want)
			}
		})
	}
}

func TestExtractMetricValue(t *testing.T) {
	sum := workload.Summary{
		Total:     1000,
		Successes: 950,
		Failures:  50,
		OpsPerSec: 123.45,
		Latency: perf.Snapshot{
			MinMs:  10.5,
			MaxMs:  500.25,
			MeanMs: 100.75,
			P50Ms:  80.5,
			P90Ms:  200.25,
			P95Ms:  300.5,
			P99Ms:  400.5,
		},
		Memory: arena.RegistryStats{Arena: arena.Stats{Chunks: 7}},
		Leaks:  workload.LeakStats{Count: 4, Bytes: 256},
	}

	tests := []struct {
		name      string
		threshold Threshold
		want      float64
		wantError bool
	}{
		{
			name:      "op_duration p50",
			threshold: Threshold{Metric: "op_duration", Aggregate: "p50"},
			want:      80.5,
		},
		{
			name:      "op_duration p90",
			threshold: Threshold{Metric: "op_duration", Aggregate: "p90"},
			want:      200.25,
		},
		{
			name:      "op_duration p95",
			threshold: Threshold{Metric: "op_duration", Aggregate: "p95"},
			want:      300.5,
		},
		{
			name:      "op_duration p99",
			threshold: Threshold{Metric: "op_duration", Aggregate: "p99"},
			want:      400.5,
		},
		{
			name:      "op_duration avg",
			threshold: Threshold{Metric: "op_duration", Aggregate: "avg"},
			want:      100.75,
		},
		{
			name:      "op_duration min",
			threshold: Threshold{Metric: "op_duration", Aggregate: "min"},
			want:      10.5,
		},
		{
			name:      "op_duration max",
			threshold: Threshold{Metric: "op_duration", Aggregate: "max"},
			want:      500.25,
		},
		{
			name:      "op_failed rate",
			threshold: Threshold{Metric: "op_failed", Aggregate: "rate"},
			want:      0.05,
		},
		{
			name:      "op_failed count",
			threshold: Threshold{Metric: "op_failed", Aggregate: "count"},
			want:      50,
		},
		{
			name:      "ops rate",
			threshold: Threshold{Metric: "ops", Aggregate: "rate"},
			want:      123.45,
		},
		{
			name:      "ops count",
			threshold: Threshold{Metric: "ops", Aggregate: "count"},
			want:      1000,
		},
		{
			name:      "arena_leaked count",
			threshold: Threshold{Metric: "arena_leaked", Aggregate: "count"},
			want:      4,
		},
		{
			name:      "arena_leaked bytes",
			threshold: Threshold{Metric: "arena_leaked", Aggregate: "bytes"},
			want:      256,
		},
		{
			name:      "arena_chunks count",
			threshold: Threshold{Metric: "arena_chunks", Aggregate: "count"},
			want:      7,
		},
		{
			name:      "unsupported metric",
			threshold: Threshold{Metric: "invalid_metric", Aggregate: "p95"},
			wantError: true,
		},
		{
			name:      "unsupported aggregate for metric",
			threshold: Threshold{Metric: "op_failed", Aggregate: "p95"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractMetricValue(tt.threshold, sum)
			if (err != nil) != tt.wantError {
				t.Errorf("extractMetricValue() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("extractMetricValue() = %v, want %v", got, tt.want)
			}
		})
	}
}
