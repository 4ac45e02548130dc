package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/cartograb/internal/common"
)

// BadgerDB wraps the badgerhold store holding metadata rows and run history
type BadgerDB struct {
	store  *badgerhold.Store
	path   string
	logger arbor.ILogger
}

// NewBadgerDB opens (or creates) the database at config.Path
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Info().Str("path", config.Path).Msg("Removing previous run history (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	if err := os.MkdirAll(config.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	return openDir(logger, config.Path)
}

func openDir(logger arbor.ILogger, dir string) (*BadgerDB, error) {
	options := badgerhold.DefaultOptions
	options.Dir = filepath.Clean(dir)
	options.ValueDir = options.Dir
	options.Logger = &storeLogger{logger: logger}

	store, err := badgerhold.Open(options)
	if err != nil {
		logger.Error().Err(err).Str("path", dir).Msg("Failed to open Badger database")
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dir, err)
	}

	logger.Debug().Str("path", dir).Msg("Badger database opened")
	return &BadgerDB{store: store, path: dir, logger: logger}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Path returns the database directory
func (b *BadgerDB) Path() string {
	return b.path
}

// Close closes the database
func (b *BadgerDB) Close() error {
	if b.store == nil {
		return nil
	}
	err := b.store.Close()
	b.store = nil
	return err
}

// storeLogger routes badger's internal messages into arbor. Info chatter is
// demoted to trace level.
type storeLogger struct {
	logger arbor.ILogger
}

var _ badgerdb.Logger = (*storeLogger)(nil)

func (l *storeLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (l *storeLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (l *storeLogger) Infof(format string, args ...interface{}) {
	l.logger.Trace().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (l *storeLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf("badger: "+strings.TrimSpace(format), args...)
}
