package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// setupTestDB opens a database in a temp directory and returns a cleanup function
func setupTestDB(t *testing.T) (*Manager, func()) {
	t.Helper()

	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")}
	logger := arbor.NewLogger()

	db, err := NewBadgerDB(logger, config)
	require.NoError(t, err)

	manager := newManager(db, logger)
	return manager, func() {
		manager.Close()
	}
}

func TestRowStorage_ListsRowsOfOneRunInSequence(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	rows := manager.RowStorage()

	// Saved out of order and interleaved with another run
	for _, seq := range []int{2, 0, 1} {
		require.NoError(t, rows.SaveRow(ctx, &models.StoredRow{
			ID:       common.NewRowID(),
			RunID:    "run_a",
			Sequence: seq,
			AssetURL: "https://example.carto.com/viz/" + string(rune('a'+seq)),
			Values:   map[string]string{"frontendConfig.seq": string(rune('0' + seq))},
		}))
	}
	require.NoError(t, rows.SaveRow(ctx, &models.StoredRow{ID: common.NewRowID(), RunID: "run_b", Sequence: 0}))

	got, err := rows.ListRows(ctx, "run_a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, i, r.Sequence)
		assert.Equal(t, "run_a", r.RunID)
	}
	assert.Equal(t, "1", got[1].Values["frontendConfig.seq"])

	none, err := rows.ListRows(ctx, "run_missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRowStorage_RequiresID(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()

	err := manager.RowStorage().SaveRow(context.Background(), &models.StoredRow{RunID: "run_a"})
	assert.Error(t, err)
}

func TestRunStorage_SaveGetList(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	runs := manager.RunStorage()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"run_1", "run_2", "run_3"} {
		require.NoError(t, runs.SaveRun(ctx, &models.RunRecord{
			ID:        id,
			Mode:      models.RunModeExport,
			Kind:      models.AssetKindMap,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Assets:    10 * (i + 1),
		}))
	}

	run, err := runs.GetRun(ctx, "run_2")
	require.NoError(t, err)
	assert.Equal(t, 20, run.Assets)
	assert.Equal(t, models.AssetKindMap, run.Kind)

	// Update keeps a single record
	run.Failed = 4
	require.NoError(t, runs.SaveRun(ctx, run))

	all, err := runs.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run_3", all[0].ID, "most recent first")
	assert.Equal(t, "run_1", all[2].ID)

	limited, err := runs.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run_3", limited[0].ID)
	assert.Equal(t, "run_2", limited[1].ID)
	assert.Equal(t, 4, limited[1].Failed)
}

func TestRunStorage_GetUnknownRun(t *testing.T) {
	manager, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := manager.RunStorage().GetRun(context.Background(), "run_nope")
	assert.True(t, errors.Is(err, interfaces.ErrRunNotFound))
}

func TestNewBadgerDB_ResetOnStartup(t *testing.T) {
	logger := arbor.NewLogger()
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")}

	db, err := NewBadgerDB(logger, config)
	require.NoError(t, err)
	runs := NewRunStorage(db, logger)
	require.NoError(t, runs.SaveRun(context.Background(), &models.RunRecord{ID: "run_old", StartedAt: time.Now()}))
	require.NoError(t, db.Close())

	config.ResetOnStartup = true
	db, err = NewBadgerDB(logger, config)
	require.NoError(t, err)
	defer db.Close()

	_, err = NewRunStorage(db, logger).GetRun(context.Background(), "run_old")
	assert.ErrorIs(t, err, interfaces.ErrRunNotFound)
}
