package store

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/airesearcher/frontend/internal/config"
)

const redisKeyPrefix = "airesearcher:"

// Open builds the store selected by cfg.Store.Driver. The returned close
// function releases any connection it opened.
func Open(cfg *config.Config) (KeyValueStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case "", "file":
		s, err := NewFileStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "memory":
		return NewMemoryStore(), noop, nil
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(redisClient, redisKeyPrefix), redisClient.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
