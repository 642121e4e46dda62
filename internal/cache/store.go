// Package cache is the on-device key/value store that anchors durability
// for the catalog, favorites and logs. Values are serialized JSON blobs.
package cache

import (
	"context"
	"errors"
	"fmt"

	"backend-cragmap/internal/config"
	"backend-cragmap/internal/db"

	"github.com/redis/go-redis/v9"
)

// Keys of the partitioned cache space. Each collection owns exactly one key.
const (
	KeySites     = "@climbing_sites_cache"
	KeyFavorites = "@climbing_route_favorites"
	KeyLogs      = "user_climbing_logs"
)

var ErrNotFound = errors.New("cache: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Open selects the backend named by cfg.CacheBackend. The redis backend
// shares rdb rather than dialing its own client.
func Open(cfg config.Config, rdb *redis.Client) (Store, error) {
	switch cfg.CacheBackend {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		conn, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLite(conn)
	case "redis":
		if rdb == nil {
			return nil, errors.New("cache: redis backend requires REDIS_ADDR")
		}
		return NewRedis(rdb, ""), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.CacheBackend)
	}
}
