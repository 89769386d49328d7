package repo

import (
	"context"
	"fmt"
	"log/slog"
)

// Драйверы хранилища.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
)

// OpenConfig — параметры выбора хранилища.
type OpenConfig struct {
	Driver      string
	DatabaseURL string
	BadgerPath  string
	RedisURL    string
	Logger      *slog.Logger
}

// Open открывает хранилище выбранного драйвера.
// Для postgres создаётся схема.
func Open(ctx context.Context, cfg OpenConfig) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil

	case DriverPostgres:
		pool, err := NewPool(ctx, PoolConfig{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		store := NewPGStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil

	case DriverBadger:
		bc := DefaultBadgerConfig(cfg.BadgerPath)
		bc.Logger = cfg.Logger
		return OpenBadgerStore(bc)

	case DriverRedis:
		return NewRedisStore(ctx, cfg.RedisURL)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}
