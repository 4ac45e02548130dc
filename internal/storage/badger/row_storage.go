package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// RowStorage persists metadata rows as they are extracted so a crashed run
// still leaves its rows behind
type RowStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRowStorage creates a RowStorage
func NewRowStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RowStore {
	return &RowStorage{
		db:     db,
		logger: logger,
	}
}

// SaveRow inserts or replaces a row
func (s *RowStorage) SaveRow(ctx context.Context, row *models.StoredRow) error {
	if row.ID == "" {
		return fmt.Errorf("row ID is required")
	}
	if err := s.db.Store().Upsert(row.ID, row); err != nil {
		return fmt.Errorf("failed to save row: %w", err)
	}
	return nil
}

// ListRows returns the rows of a run in visitation order
func (s *RowStorage) ListRows(ctx context.Context, runID string) ([]*models.StoredRow, error) {
	var rows []models.StoredRow
	query := badgerhold.Where("RunID").Eq(runID).Index("RunID").SortBy("Sequence")
	if err := s.db.Store().Find(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to list rows for run %s: %w", runID, err)
	}

	result := make([]*models.StoredRow, len(rows))
	for i := range rows {
		result[i] = &rows[i]
	}
	return result, nil
}
