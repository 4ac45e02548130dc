package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewRowID generates a unique stored-row ID with the "row_" prefix
func NewRowID() string {
	return "row_" + uuid.New().String()
}
