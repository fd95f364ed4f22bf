package store

import (
	"context"

	"recordstore/service/pkg/config"
)

// Open returns the store described by cfg. The driver "memory" selects the
// in-memory store; every other driver is opened as SQLite.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg.Driver == "memory" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(ctx, cfg)
}
