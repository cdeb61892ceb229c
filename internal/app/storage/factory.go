// Package storage selects and opens the record store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/flightops/flight-data-server/internal/config"
	"github.com/flightops/flight-data-server/internal/db"
	"github.com/flightops/flight-data-server/internal/logger"
	"github.com/flightops/flight-data-server/internal/store"
	"github.com/flightops/flight-data-server/internal/store/memory"
	"github.com/flightops/flight-data-server/internal/store/postgres"
)

// NewStore opens the store the configuration selects. The caller closes it.
func NewStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeMemory:
		logger.Infow("Using memory store", "snapshot", cfg.Storage.SnapshotPath)
		return memory.New(memory.WithSnapshot(cfg.Storage.SnapshotPath))
	case config.StorageTypeDatabase:
		if cfg.Database == nil {
			return nil, fmt.Errorf("database configuration is required for database storage type")
		}
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
		return postgres.New(pool), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
