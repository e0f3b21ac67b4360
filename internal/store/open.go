package store

import (
	"context"
	"fmt"

	"github.com/TMG-AI/tara-dashboard/internal/config"
	"github.com/TMG-AI/tara-dashboard/internal/db"
)

// Open returns the Backend selected by STORE_DRIVER.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool), nil
	case config.DriverSQLite, "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
