package models

import "time"

// RunMode selects what the orchestrator does with each asset
type RunMode string

const (
	RunModeExport   RunMode = "export"
	RunModeMetadata RunMode = "metadata"
)

// RunRecord summarises one orchestrator run. It is persisted so previous
// runs can be listed and their metadata rows re-exported.
type RunRecord struct {
	ID          string    `json:"id"`
	Mode        RunMode   `json:"mode" badgerhold:"index"`
	Kind        AssetKind `json:"kind"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Pages       int       `json:"pages"`
	PagesFailed int       `json:"pages_failed"`
	Assets      int       `json:"assets"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Files       int       `json:"files"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	LedgerPath  string    `json:"ledger_path"`
	OutputPath  string    `json:"output_path"`
	Aborted     string    `json:"aborted,omitempty"`
}

// Duration returns the wall-clock time of the run
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
