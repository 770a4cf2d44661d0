package repository

import (
	"fmt"

	"github.com/navikt/meetrooms/internal/config"
	"github.com/navikt/meetrooms/internal/repository/badger"
	"github.com/navikt/meetrooms/internal/repository/memory"
	"github.com/navikt/meetrooms/internal/repository/redis"
)

var (
	_ Repository = (*memory.Repository)(nil)
	_ Repository = (*redis.Repository)(nil)
	_ Repository = (*badger.Repository)(nil)
)

// NewRepository creates the storage backend selected by the configuration
func NewRepository(cfg config.Config) (Repository, error) {
	switch cfg.Backend {
	case config.StoreRedis:
		return redis.NewRepository(cfg.Redis)
	case config.StoreBadger:
		return badger.NewRepository(cfg.Badger)
	case config.StoreMemory, "":
		return memory.NewRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
