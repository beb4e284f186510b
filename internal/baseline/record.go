// Package baseline persists run summaries and flags regressions against
// previously recorded runs. A baseline file is a small JSON history of
// records guarded by a file lock, so concurrent probes on one host cannot
// corrupt it.
package baseline

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/probelab/vigil/internal/workload"
)

// Record is one persisted run.
type Record struct {
	ID         string           `json:"id"`
	RecordedAt time.Time        `json:"recorded_at"`
	Summary    workload.Summary `json:"summary"`
}

// NewRecord stamps a summary with a fresh run ID. ULIDs sort by creation
// time, which keeps the history readable with plain sort or grep.
func NewRecord(sum workload.Summary) Record {
	return Record{
		ID:         ulid.Make().String(),
		RecordedAt: time.Now().UTC(),
		Summary:    sum,
	}
}
