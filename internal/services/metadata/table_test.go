package metadata

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/cartograb/internal/models"
	"github.com/ternarybob/cartograb/internal/storage/memory"
)

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestTable_SchemaUnion(t *testing.T) {
	ctx := context.Background()
	table := NewTable(memory.NewRowStorage(), "run_1", "NA")

	require.NoError(t, table.Append(ctx, "u1", models.MetadataRow{"b": "1", "a": "x"}))
	require.NoError(t, table.Append(ctx, "u2", models.MetadataRow{"c": true}))
	require.NoError(t, table.Append(ctx, "u3", nil))
	require.NoError(t, table.Append(ctx, "u4", models.MetadataRow{"a": nil, "d": []interface{}{1, 2}}))

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, []string{"a", "b", "c", "d"}, table.Columns())

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(ctx, &buf))

	records := readCSV(t, buf.Bytes())
	require.Len(t, records, 5)
	assert.Equal(t, []string{"a", "b", "c", "d"}, records[0])
	assert.Equal(t, []string{"x", "1", "NA", "NA"}, records[1])
	assert.Equal(t, []string{"NA", "NA", "true", "NA"}, records[2])
	assert.Equal(t, []string{"NA", "NA", "NA", "NA"}, records[3])
	assert.Equal(t, []string{"", "NA", "NA", "[1,2]"}, records[4])

	for _, r := range records {
		assert.Len(t, r, len(records[0]), "no row shorter than the header")
	}
}

func TestTable_RowsOfOtherRunsAreIgnored(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRowStorage()

	require.NoError(t, NewTable(store, "run_old", "").Append(ctx, "old", models.MetadataRow{"z": 1}))

	table := NewTable(store, "run_new", "")
	require.NoError(t, table.Append(ctx, "new", models.MetadataRow{"a": 1}))

	var buf bytes.Buffer
	require.NoError(t, table.WriteCSV(ctx, &buf))
	assert.Equal(t, [][]string{{"a"}, {"1"}}, readCSV(t, buf.Bytes()))
}

type failingStore struct{}

func (f *failingStore) SaveRow(ctx context.Context, row *models.StoredRow) error {
	return errors.New("store offline")
}

func (f *failingStore) ListRows(ctx context.Context, runID string) ([]*models.StoredRow, error) {
	return nil, nil
}

func TestTable_AppendFailureDoesNotGrowSchema(t *testing.T) {
	table := NewTable(&failingStore{}, "run_1", "")
	err := table.Append(context.Background(), "u", models.MetadataRow{"a": 1})

	assert.Error(t, err)
	assert.Zero(t, table.Len())
	assert.Empty(t, table.Columns())
}

func TestTable_WriteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "map_metadata.csv")
	table := NewTable(memory.NewRowStorage(), "run_1", "")
	require.NoError(t, table.Append(ctx, "u1", models.MetadataRow{"frontendConfig.user_name": "ampitup"}))

	require.NoError(t, table.WriteFile(ctx, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "frontendConfig.user_name\nampitup\n", string(data))

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".metadata-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestColumnsOf(t *testing.T) {
	rows := []*models.StoredRow{
		{Values: map[string]string{"b": "1"}},
		{Values: map[string]string{"a": "1", "b": "2"}},
		{},
	}
	assert.Equal(t, []string{"a", "b"}, ColumnsOf(rows))
}
