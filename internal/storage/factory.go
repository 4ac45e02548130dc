package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cartograb/internal/common"
	"github.com/ternarybob/cartograb/internal/interfaces"
	"github.com/ternarybob/cartograb/internal/storage/badger"
	"github.com/ternarybob/cartograb/internal/storage/memory"
)

// NewStorageManager creates the storage manager selected by config.Storage.Type
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Storage.Type {
	case "badger", "":
		return badger.NewManager(logger, &config.Storage.Badger)
	case "memory":
		logger.Debug().Msg("Using in-memory storage, run history will not be kept")
		return memory.NewManager(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected badger or memory)", config.Storage.Type)
	}
}
