package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db     *BadgerDB
	rows   interfaces.RowStore
	runs   interfaces.RunStorage
	logger arbor.ILogger
}

// NewManager opens the database and creates its stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("path", config.Path).Msg("Badger storage manager initialized")

	return newManager(db, logger), nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:     db,
		rows:   NewRowStorage(db, logger),
		runs:   NewRunStorage(db, logger),
		logger: logger,
	}
}

// RowStorage returns the metadata row store
func (m *Manager) RowStorage() interfaces.RowStore {
	return m.rows
}

// RunStorage returns the run history store
func (m *Manager) RunStorage() interfaces.RunStorage {
	return m.runs
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
