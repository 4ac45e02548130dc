package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/models"
)

func TestLedger_AppendsOneLinePerFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "failed.txt")

	l, err := Open(path, arbor.NewLogger())
	require.NoError(t, err)

	require.NoError(t, l.Record(7, "page", "page load timeout"))
	require.NoError(t, l.Record(8, "Evictions 2019", "confirm timeout:\n waited 3m"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Page 7: page - page load timeout")
	assert.Contains(t, lines[1], "Page 8: Evictions 2019 - confirm timeout: waited 3m")
	assert.Equal(t, 2, l.Count())
}

func TestLedger_NeverTruncatesExistingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous run entry\n"), 0644))

	l, err := Open(path, arbor.NewLogger())
	require.NoError(t, err)
	require.NoError(t, l.Record(1, "3th map", "no export format succeeded"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "previous run entry\n"))
	assert.Contains(t, string(data), "Page 1: 3th map - no export format succeeded")
}

func TestFormatLine(t *testing.T) {
	rec := models.FailureRecord{
		PageNumber: 3,
		AssetLabel: "Rent Map",
		Reason:     "export unavailable",
		RecordedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "2024-03-01T10:00:00Z\tPage 3: Rent Map - export unavailable\n", FormatLine(rec))
}
