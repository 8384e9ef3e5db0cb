package storage

import (
	"context"
	"fmt"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/storage/badger"
	"github.com/bobmcallan/folio-portal/internal/storage/memory"
	"github.com/bobmcallan/folio-portal/internal/storage/redis"
)

// NewStorageManager creates the storage manager selected by cfg.Storage.Backend.
func NewStorageManager(ctx context.Context, logger *common.Logger, cfg *config.Config) (interfaces.StorageManager, error) {
	switch cfg.Storage.Backend {
	case "", "badger":
		return badger.NewManager(logger, &cfg.Storage.Badger)
	case "redis":
		return redis.NewManager(ctx, logger, &cfg.Storage.Redis)
	case "memory":
		return memory.NewManager(), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
