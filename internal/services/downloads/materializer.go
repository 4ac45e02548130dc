// -----------------------------------------------------------------------
// Download Materializer - relocates the newest staged download
// -----------------------------------------------------------------------

package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
)

// partialSuffixes mark downloads that are still in flight
var partialSuffixes = []string{".crdownload", ".part", ".partial", ".tmp", ".download"}

// Materializer polls the staging directory once per successful export attempt.
//
// The newest file is the only link between a staged file and the attempt that
// produced it, so attempts must be serialized: one outstanding download at a time.
type Materializer struct {
	stagingDir string
	settle     time.Duration
	logger     arbor.ILogger
}

var _ interfaces.Materializer = (*Materializer)(nil)

// NewMaterializer creates a materializer for stagingDir
func NewMaterializer(stagingDir string, settle time.Duration, logger arbor.ILogger) *Materializer {
	return &Materializer{
		stagingDir: stagingDir,
		settle:     settle,
		logger:     logger,
	}
}

// Materialize waits the settle delay, then moves the most recently modified
// completed file into destinationFolder keeping its original name. An empty
// staging directory is logged as a warning and returns ("", nil).
func (m *Materializer) Materialize(ctx context.Context, destinationFolder string) (string, error) {
	if err := common.Sleep(ctx, m.settle); err != nil {
		return "", err
	}

	latest, err := m.latestFile()
	if err != nil {
		return "", err
	}
	if latest == nil {
		m.logger.Warn().
			Str("staging_dir", m.stagingDir).
			Str("destination", destinationFolder).
			Msg("No downloaded file found in staging directory")
		return "", nil
	}

	if err := os.MkdirAll(destinationFolder, 0755); err != nil {
		return "", fmt.Errorf("failed to create destination %s: %w", destinationFolder, err)
	}

	source := filepath.Join(m.stagingDir, latest.Name())
	target := uniquePath(filepath.Join(destinationFolder, latest.Name()))

	if err := moveFile(source, target); err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", source, target, err)
	}

	m.logger.Info().
		Str("file", latest.Name()).
		Str("size", humanize.Bytes(uint64(latest.Size()))).
		Str("destination", destinationFolder).
		Msg("Moved downloaded file")

	return target, nil
}

// latestFile returns the newest completed regular file in the staging directory
func (m *Materializer) latestFile() (os.FileInfo, error) {
	entries, err := os.ReadDir(m.stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list staging directory: %w", err)
	}

	var candidates []os.FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isCompleted(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Vanished between listing and stat
			continue
		}
		candidates = append(candidates, info)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ModTime().After(candidates[j].ModTime())
	})
	return candidates[0], nil
}

// isCompleted excludes hidden entries and in-flight browser downloads
func isCompleted(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return false
		}
	}
	return true
}

// uniquePath appends " (n)" before the extension until path does not exist
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// moveFile renames, falling back to copy+remove across filesystems
func moveFile(source, target string) error {
	err := os.Rename(source, target)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(target)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	in.Close()
	return os.Remove(source)
}
