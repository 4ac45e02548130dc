package downloads

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// warnCapture collects warn and above through an arbor channel writer.
// events stops the writer, which drains the buffer first.
func warnCapture(t *testing.T) (arbor.ILogger, func() []arbormodels.LogEvent) {
	t.Helper()

	var (
		mu     sync.Mutex
		events []arbormodels.LogEvent
	)
	w, err := writers.NewChannelWriter(arbormodels.WriterConfiguration{Level: levels.WarnLevel}, 16,
		func(ev arbormodels.LogEvent) error {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, ev)
			return nil
		})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	logger := arbor.NewLogger().WithWriters([]writers.IWriter{w})
	return logger, func() []arbormodels.LogEvent {
		require.NoError(t, w.Stop())
		mu.Lock()
		defer mu.Unlock()
		return append([]arbormodels.LogEvent(nil), events...)
	}
}

func writeStaged(t *testing.T, dir, name string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestMaterialize_EmptyStagingWarnsWithoutError(t *testing.T) {
	staging := t.TempDir()
	dest := filepath.Join(t.TempDir(), "Evictions")

	logger, events := warnCapture(t)
	m := NewMaterializer(staging, 0, logger)
	path, err := m.Materialize(context.Background(), dest)

	require.NoError(t, err)
	assert.Empty(t, path)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "destination should not be created when nothing was downloaded")

	logged := events()
	require.Len(t, logged, 1)
	assert.Equal(t, "warn", arbor.LevelToString(logged[0].Level))
	assert.Equal(t, "No downloaded file found in staging directory", logged[0].Message)
	assert.Equal(t, staging, logged[0].Fields["staging_dir"])
}

func TestMaterialize_MissingStagingDirIsNotFatal(t *testing.T) {
	m := NewMaterializer(filepath.Join(t.TempDir(), "does-not-exist"), 0, arbor.NewLogger())
	path, err := m.Materialize(context.Background(), t.TempDir())

	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestMaterialize_MovesNewestCompletedFile(t *testing.T) {
	staging := t.TempDir()
	dest := filepath.Join(t.TempDir(), "Rent Burden")
	base := time.Now().Add(-time.Hour)

	writeStaged(t, staging, "older.csv", base)
	writeStaged(t, staging, "newest.geojson", base.Add(2*time.Minute))
	writeStaged(t, staging, ".DS_Store", base.Add(5*time.Minute))
	writeStaged(t, staging, "inflight.zip.crdownload", base.Add(6*time.Minute))

	m := NewMaterializer(staging, 0, arbor.NewLogger())
	path, err := m.Materialize(context.Background(), dest)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "newest.geojson"), path)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(staging, "newest.geojson"))
	assert.FileExists(t, filepath.Join(staging, "older.csv"))
	assert.FileExists(t, filepath.Join(staging, "inflight.zip.crdownload"))
}

func TestMaterialize_KeepsExistingFilesAtDestination(t *testing.T) {
	staging := t.TempDir()
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "layer.zip"), []byte("first"), 0644))
	writeStaged(t, staging, "layer.zip", time.Now())

	m := NewMaterializer(staging, 0, arbor.NewLogger())
	path, err := m.Materialize(context.Background(), dest)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "layer (1).zip"), path)
	data, err := os.ReadFile(filepath.Join(dest, "layer.zip"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestMaterialize_HonoursCancellationDuringSettle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMaterializer(t.TempDir(), time.Minute, arbor.NewLogger())
	_, err := m.Materialize(ctx, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsCompleted(t *testing.T) {
	assert.True(t, isCompleted("export.csv"))
	assert.True(t, isCompleted("map.carto"))
	assert.False(t, isCompleted(".hidden"))
	assert.False(t, isCompleted("export.csv.crdownload"))
	assert.False(t, isCompleted("export.zip.PART"))
}
