// Package memory keeps rows and runs in process memory. It backs
// storage.type = "memory" and the tests of the packages above it.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// Manager implements the StorageManager interface in memory
type Manager struct {
	rows *RowStorage
	runs *RunStorage
}

// NewManager creates empty in-memory stores
func NewManager() *Manager {
	return &Manager{rows: NewRowStorage(), runs: NewRunStorage()}
}

func (m *Manager) RowStorage() interfaces.RowStore { return m.rows }

func (m *Manager) RunStorage() interfaces.RunStorage { return m.runs }

func (m *Manager) Close() error { return nil }

// RowStorage is an in-memory RowStore
type RowStorage struct {
	mu   sync.RWMutex
	rows map[string]*models.StoredRow
}

// NewRowStorage creates an empty row store
func NewRowStorage() *RowStorage {
	return &RowStorage{rows: make(map[string]*models.StoredRow)}
}

func (s *RowStorage) SaveRow(ctx context.Context, row *models.StoredRow) error {
	if row.ID == "" {
		return fmt.Errorf("row ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *row
	clone.Values = make(map[string]string, len(row.Values))
	for k, v := range row.Values {
		clone.Values[k] = v
	}
	s.rows[row.ID] = &clone
	return nil
}

func (s *RowStorage) ListRows(ctx context.Context, runID string) ([]*models.StoredRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.StoredRow
	for _, r := range s.rows {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// RunStorage is an in-memory RunStorage
type RunStorage struct {
	mu   sync.RWMutex
	runs map[string]models.RunRecord
}

// NewRunStorage creates an empty run store
func NewRunStorage() *RunStorage {
	return &RunStorage{runs: make(map[string]models.RunRecord)}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrRunNotFound, id)
	}
	return &run, nil
}

func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		r := r
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
