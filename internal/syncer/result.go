package syncer

import (
	"time"

	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// Outcome is the result class of syncing one mapping.
type Outcome string

const (
	Created   Outcome = "created"
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
	Failed    Outcome = "failed"
)

// Outcomes lists every outcome in report order.
func Outcomes() []Outcome {
	return []Outcome{Created, Updated, Unchanged, Failed}
}

// Result records what happened to one mapping.
type Result struct {
	Mapping     Mapping       `json:"mapping" yaml:"mapping"`
	Outcome     Outcome       `json:"outcome" yaml:"outcome"`
	PageID      string        `json:"page_id,omitempty" yaml:"page_id,omitempty"`
	Version     int           `json:"version,omitempty" yaml:"version,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	ErrorKind   syncerr.Kind  `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

func failedResult(m Mapping, err error) Result {
	return Result{
		Mapping:   m,
		Outcome:   Failed,
		ErrorKind: syncerr.KindOf(err),
		Error:     err.Error(),
	}
}

// Report is the audit record of one run. Results are in mapping order.
type Report struct {
	RunID    string    `json:"run_id" yaml:"run_id"`
	Started  time.Time `json:"started" yaml:"started"`
	Finished time.Time `json:"finished" yaml:"finished"`
	DryRun   bool      `json:"dry_run" yaml:"dry_run"`
	Results  []Result  `json:"results" yaml:"results"`
}

// Failed reports whether any mapping failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Outcome == Failed {
			return true
		}
	}
	return false
}

// Counts returns the number of results per outcome. Every outcome is present.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes()))
	for _, o := range Outcomes() {
		counts[o] = 0
	}
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}
