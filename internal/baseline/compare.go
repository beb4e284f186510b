package baseline

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/probelab/vigil/internal/workload"
)

// compareField names one summary field to check, by its JSON path. The
// path list is data so adding a field to the comparison never touches the
// comparison logic.
type compareField struct {
	path string

	// higherIsWorse flags latency-like fields; throughput-like fields
	// regress when they drop.
	higherIsWorse bool

	// absolute fields regress on any increase, maxRegression does not
	// apply. Used for leak counts where "10% more leaks" is still a bug.
	absolute bool
}

var compareFields = []compareField{
	{path: "latency.mean_ms", higherIsWorse: true},
	{path: "latency.p50_ms", higherIsWorse: true},
	{path: "latency.p95_ms", higherIsWorse: true},
	{path: "latency.p99_ms", higherIsWorse: true},
	{path: "ops_per_sec", higherIsWorse: false},
	{path: "leaks.count", absolute: true},
	{path: "leaks.bytes", absolute: true},
}

// Delta is the movement of one compared field.
type Delta struct {
	Field    string  `json:"field"`
	Baseline float64 `json:"baseline"`
	Current  float64 `json:"current"`
	// Change is the fractional regression for ratio fields (positive is
	// worse) and the raw difference for absolute fields.
	Change    float64 `json:"change"`
	Regressed bool    `json:"regressed"`
}

// Comparison is the outcome of checking a run against a baseline record.
type Comparison struct {
	BaselineID string  `json:"baseline_id"`
	Deltas     []Delta `json:"deltas"`
	Regressed  bool    `json:"regressed"`
}

// Failures returns only the regressed deltas.
func (c Comparison) Failures() []Delta {
	var out []Delta
	for _, d := range c.Deltas {
		if d.Regressed {
			out = append(out, d)
		}
	}
	return out
}

// Compare checks current against the baseline record. maxRegression is the
// tolerated fractional slowdown for ratio fields, e.g. 0.1 passes anything
// within 10% of the baseline. Ratio fields with a zero baseline are
// skipped; there is no meaningful "percent worse than nothing".
func Compare(base Record, current workload.Summary, maxRegression float64) (Comparison, error) {
	baseJSON, err := json.Marshal(base.Summary)
	if err != nil {
		return Comparison{}, fmt.Errorf("baseline: encoding baseline summary: %w", err)
	}
	curJSON, err := json.Marshal(current)
	if err != nil {
		return Comparison{}, fmt.Errorf("baseline: encoding current summary: %w", err)
	}

	cmp := Comparison{BaselineID: base.ID}
	for _, field := range compareFields {
		bv := gjson.GetBytes(baseJSON, field.path)
		cv := gjson.GetBytes(curJSON, field.path)
		if !bv.Exists() || !cv.Exists() {
			continue
		}

		d := Delta{Field: field.path, Baseline: bv.Float(), Current: cv.Float()}
		switch {
		case field.absolute:
			d.Change = d.Current - d.Baseline
			d.Regressed = d.Change > 0
		case d.Baseline <= 0:
			continue
		case field.higherIsWorse:
			d.Change = (d.Current - d.Baseline) / d.Baseline
			d.Regressed = d.Change > maxRegression
		default:
			d.Change = (d.Baseline - d.Current) / d.Baseline
			d.Regressed = d.Change > maxRegression
		}
		if d.Regressed {
			cmp.Regressed = true
		}
		cmp.Deltas = append(cmp.Deltas, d)
	}
	return cmp, nil
}
