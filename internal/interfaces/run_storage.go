package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/cartograb/internal/models"
)

// ErrRunNotFound is returned when a run id is unknown to the store
var ErrRunNotFound = errors.New("run not found")

// RowStore persists metadata rows in visitation order
type RowStore interface {
	SaveRow(ctx context.Context, row *models.StoredRow) error
	ListRows(ctx context.Context, runID string) ([]*models.StoredRow, error)
}

// RunStorage persists run summaries
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
}

// StorageManager owns the stores of one process
type StorageManager interface {
	RowStorage() RowStore
	RunStorage() RunStorage
	Close() error
}
