package metadata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/models"
)

// Table accumulates metadata rows for one run. Rows are streamed to a
// RowStore as they arrive while the column set grows monotonically; padding
// happens once when the CSV is written.
type Table struct {
	store   interfaces.RowStore
	runID   string
	missing string
	columns map[string]struct{}
	rows    int
}

// NewTable creates an empty table for runID. missing is written for every
// column a row does not have.
func NewTable(store interfaces.RowStore, runID string, missing string) *Table {
	return &Table{
		store:   store,
		runID:   runID,
		missing: missing,
		columns: make(map[string]struct{}),
	}
}

// Append stores a row in visitation order. A nil or empty row is still a
// row: the asset was visited and gets a line of missing values.
func (t *Table) Append(ctx context.Context, assetURL string, row models.MetadataRow) error {
	stored := &models.StoredRow{
		ID:       common.NewRowID(),
		RunID:    t.runID,
		Sequence: t.rows,
		AssetURL: assetURL,
		Values:   make(map[string]string, len(row)),
	}
	for k, v := range row {
		stored.Values[k] = FormatValue(v)
	}

	if err := t.store.SaveRow(ctx, stored); err != nil {
		return fmt.Errorf("failed to store metadata row %d: %w", stored.Sequence, err)
	}

	for k := range row {
		t.columns[k] = struct{}{}
	}
	t.rows++
	return nil
}

// RunID returns the id the rows are stored under
func (t *Table) RunID() string {
	return t.runID
}

// Len returns the number of rows appended
func (t *Table) Len() int {
	return t.rows
}

// Columns returns the sorted union of every key seen so far
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.columns))
	for c := range t.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// WriteCSV writes the header and every stored row of the run
func (t *Table) WriteCSV(ctx context.Context, w io.Writer) error {
	rows, err := t.store.ListRows(ctx, t.runID)
	if err != nil {
		return fmt.Errorf("failed to load metadata rows: %w", err)
	}
	return WriteRowsCSV(w, t.Columns(), rows, t.missing)
}

// WriteFile writes the CSV to path, replacing any previous file
func (t *Table) WriteFile(ctx context.Context, path string) error {
	rows, err := t.store.ListRows(ctx, t.runID)
	if err != nil {
		return fmt.Errorf("failed to load metadata rows: %w", err)
	}
	return WriteRowsFile(path, t.Columns(), rows, t.missing)
}

// ColumnsOf returns the sorted key union of stored rows
func ColumnsOf(rows []*models.StoredRow) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		for k := range r.Values {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// WriteRowsCSV writes rows under header columns; every record has exactly len(columns) fields
func WriteRowsCSV(w io.Writer, columns []string, rows []*models.StoredRow, missing string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	record := make([]string, len(columns))
	for _, r := range rows {
		for i, c := range columns {
			if v, ok := r.Values[c]; ok {
				record[i] = v
			} else {
				record[i] = missing
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", r.Sequence, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteRowsFile writes the CSV to a temporary file next to path and renames it into place
func WriteRowsFile(path string, columns []string, rows []*models.StoredRow, missing string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temporary csv: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteRowsCSV(tmp, columns, rows, missing); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary csv: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
