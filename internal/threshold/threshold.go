package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/probelab/vigil/internal/workload"
	"github.com/probelab/vigil/strutil"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "op_duration", "op_failed", "arena_leaked"
	Aggregate string  // e.g., "p95", "p99", "avg", "max", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against a run summary.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided summary.
func (e *Evaluator) Evaluate(sum workload.Summary) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		result := e.evaluateOne(t, sum)
		results = append(results, result)
	}
	return results
}

func (e *Evaluator) evaluateOne(t Threshold, sum workload.Summary) Result {
	actual, err := extractMetricValue(t, sum)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "op_duration:p95 < 5"        (latency percentile in ms)
// - "op_duration:avg < 2"        (average latency in ms)
// - "op_duration:max < 50"       (max latency in ms)
// - "op_failed:rate < 0.01"      (failure rate as decimal)
// - "op_failed:count < 10"       (failure count)
// - "ops:rate > 10000"           (operations per second)
// - "arena_leaked:count == 0"    (leaked allocations at run end)
// - "arena_leaked:bytes < 4096"  (leaked bytes at run end)
// - "arena_chunks:count < 64"    (backing chunks at run end)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	// Pattern: metric:aggregate operator value
	// e.g., "op_duration:p95 < 5"
	pattern := regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)
	matches := pattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'op_duration:p95 < 5')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	// Validate metric
	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q%s (supported: %s)",
			metric, suggestion(metric, validMetrics), strings.Join(validMetrics, ", "))
	}

	// Validate aggregate
	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q%s (supported: %s)",
			aggregate, suggestion(aggregate, validAggregates), strings.Join(validAggregates, ", "))
	}

	// Validate operator
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var (
	validMetrics    = []string{"op_duration", "op_failed", "ops", "arena_leaked", "arena_chunks"}
	validAggregates = []string{"p50", "p90", "p95", "p99", "avg", "min", "max", "rate", "count", "bytes"}
)

func isValidMetric(metric string) bool {
	for _, v := range validMetrics {
		if metric == v {
			return true
		}
	}
	return false
}

func isValidAggregate(aggregate string) bool {
	for _, v := range validAggregates {
		if aggregate == v {
			return true
		}
	}
	return false
}

// suggestion returns a did-you-mean hint when input is a near miss of
// one valid name, empty when nothing comes close.
func suggestion(input string, valid []string) string {
	best := ""
	bestScore := 0.0
	for _, v := range valid {
		if score := strutil.FuzzyRatio(input, v); score > bestScore {
			best, bestScore = v, score
		}
	}
	if bestScore < 0.6 {
		return ""
	}
	return fmt.Sprintf(", did you mean %q", best)
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, sum workload.Summary) (float64, error) {
	switch t.Metric {
	case "op_duration":
		return extractLatencyMetric(t.Aggregate, sum)
	case "op_failed":
		return extractFailureMetric(t.Aggregate, sum)
	case "ops":
		return extractThroughputMetric(t.Aggregate, sum)
	case "arena_leaked":
		return extractLeakMetric(t.Aggregate, sum)
	case "arena_chunks":
		return extractChunkMetric(t.Aggregate, sum)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractLatencyMetric(aggregate string, sum workload.Summary) (float64, error) {
	switch aggregate {
	case "p50":
		return sum.Latency.P50Ms, nil
	case "p90":
		return sum.Latency.P90Ms, nil
	case "p95":
		return sum.Latency.P95Ms, nil
	case "p99":
		return sum.Latency.P99Ms, nil
	case "avg", "mean":
		return sum.Latency.MeanMs, nil
	case "min":
		return sum.Latency.MinMs, nil
	case "max":
		return sum.Latency.MaxMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for op_duration", aggregate)
	}
}

func extractFailureMetric(aggregate string, sum workload.Summary) (float64, error) {
	switch aggregate {
	case "count":
		return float64(sum.Failures), nil
	case "rate":
		if sum.Total == 0 {
			return 0, nil
		}
		return float64(sum.Failures) / float64(sum.Total), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for op_failed (use 'count' or 'rate')", aggregate)
	}
}

func extractThroughputMetric(aggregate string, sum workload.Summary) (float64, error) {
	switch aggregate {
	case "count":
		return float64(sum.Total), nil
	case "rate":
		return sum.OpsPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for ops (use 'count' or 'rate')", aggregate)
	}
}

func extractLeakMetric(aggregate string, sum workload.Summary) (float64, error) {
	switch aggregate {
	case "count":
		return float64(sum.Leaks.Count), nil
	case "bytes":
		return float64(sum.Leaks.Bytes), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for arena_leaked (use 'count' or 'bytes')", aggregate)
	}
}

func extractChunkMetric(aggregate string, sum workload.Summary) (float64, error) {
	switch aggregate {
	case "count":
		return float64(sum.Memory.Arena.Chunks), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for arena_chunks (use 'count')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
