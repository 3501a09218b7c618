package storage

import (
	"context"
	"fmt"
	"io"

	"roombook/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the backend named in cfg, sealed when cfg.Key is set. The
// closer releases the underlying connection or file.
func Open(ctx context.Context, cfg config.StateConfig) (Storage, io.Closer, error) {
	var (
		st     Storage
		closer io.Closer
	)
	switch cfg.Backend {
	case "", "sqlite":
		db, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		st, closer = db, db
	case "redis":
		r, err := OpenRedis(ctx, RedisConfig{Address: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, nil, err
		}
		st, closer = r, r
	case "memory":
		st, closer = NewMemory(), nopCloser{}
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q (sqlite/redis/memory)", cfg.Backend)
	}

	if cfg.Key != "" {
		st = NewSealed(st, cfg.Key, DefaultKeyParams)
	}
	return st, closer, nil
}
