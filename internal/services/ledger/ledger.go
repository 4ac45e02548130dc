// -----------------------------------------------------------------------
// Failure Ledger - append-only record of steps that could not complete
// -----------------------------------------------------------------------

package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/models"
)

// Ledger appends one human-readable line per failure to a text file.
// The file is opened in append mode and never truncated; entries are for
// manual triage and are not read back by the application.
type Ledger struct {
	path    string
	file    *os.File
	count   int
	records []models.FailureRecord
	logger  arbor.ILogger
	now     func() time.Time
}

// Open opens (or creates) the ledger file for appending
func Open(path string, logger arbor.ILogger) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}

	return &Ledger{
		path:   path,
		file:   file,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Record appends a failure. A write error is logged and returned but the
// record is still counted so the run summary stays truthful.
func (l *Ledger) Record(pageNumber int, label string, reason string) error {
	rec := models.FailureRecord{
		PageNumber: pageNumber,
		AssetLabel: label,
		Reason:     reason,
		RecordedAt: l.now(),
	}
	l.records = append(l.records, rec)
	l.count++

	l.logger.Warn().
		Int("page", pageNumber).
		Str("asset", label).
		Str("reason", reason).
		Msg("Failure recorded")

	if _, err := l.file.WriteString(FormatLine(rec)); err != nil {
		l.logger.Error().Err(err).Str("path", l.path).Msg("Failed to write ledger entry")
		return fmt.Errorf("failed to write ledger entry: %w", err)
	}
	return nil
}

// FormatLine renders a record as a single ledger line including the newline
func FormatLine(rec models.FailureRecord) string {
	reason := strings.Join(strings.Fields(rec.Reason), " ")
	return fmt.Sprintf("%s\tPage %d: %s - %s\n",
		rec.RecordedAt.Format(time.RFC3339), rec.PageNumber, rec.AssetLabel, reason)
}

// Count returns the number of failures recorded during this run
func (l *Ledger) Count() int {
	return l.count
}

// Records returns the failures recorded during this run
func (l *Ledger) Records() []models.FailureRecord {
	out := make([]models.FailureRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Path returns the ledger file location
func (l *Ledger) Path() string {
	return l.path
}

// Close flushes and closes the ledger file
func (l *Ledger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to sync ledger")
	}
	err := l.file.Close()
	l.file = nil
	return err
}
