package models

import (
	"fmt"
	"strings"
)

// AttemptOutcome is the result of trying a single export format
type AttemptOutcome string

const (
	OutcomeSuccess  AttemptOutcome = "success"
	OutcomeTimeout  AttemptOutcome = "timeout"
	OutcomeDisabled AttemptOutcome = "disabled"
	OutcomeAbsent   AttemptOutcome = "absent"
	OutcomeError    AttemptOutcome = "error"
)

// DownloadAttempt records one format that was actually tried for an asset
type DownloadAttempt struct {
	Asset   AssetReference `json:"asset"`
	Format  ExportFormat   `json:"format"`
	Outcome AttemptOutcome `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
	File    string         `json:"file,omitempty"` // materialized path, empty if nothing appeared in staging
}

// FormatSkip records a format that was not tried because the menu did not offer it
type FormatSkip struct {
	Format  ExportFormat   `json:"format"`
	Outcome AttemptOutcome `json:"outcome"` // disabled or absent
}

// AssetExport aggregates a negotiation for one asset
type AssetExport struct {
	Asset    AssetReference    `json:"asset"`
	Name     string            `json:"name"`
	Folder   string            `json:"folder"`
	Attempts []DownloadAttempt `json:"attempts"`
	Skipped  []FormatSkip      `json:"skipped"`
}

// Succeeded reports whether at least one attempt succeeded
func (e *AssetExport) Succeeded() bool {
	for _, a := range e.Attempts {
		if a.Outcome == OutcomeSuccess {
			return true
		}
	}
	return false
}

// Failed returns the attempts that were tried and did not succeed
func (e *AssetExport) Failed() []DownloadAttempt {
	var out []DownloadAttempt
	for _, a := range e.Attempts {
		if a.Outcome != OutcomeSuccess {
			out = append(out, a)
		}
	}
	return out
}

// Summary renders every considered format, e.g. "GeoJSON=disabled, SHP=timeout"
func (e *AssetExport) Summary() string {
	parts := make([]string, 0, len(e.Attempts)+len(e.Skipped))
	for _, s := range e.Skipped {
		parts = append(parts, fmt.Sprintf("%s=%s", s.Format, s.Outcome))
	}
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Format, a.Outcome))
	}
	if len(parts) == 0 {
		return "no formats considered"
	}
	return strings.Join(parts, ", ")
}
