package models

import "time"

// FailureRecord is one ledger line. Records are only ever appended.
type FailureRecord struct {
	PageNumber int       `json:"page_number"`
	AssetLabel string    `json:"asset_label"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}
