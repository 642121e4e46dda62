package db

import (
	"context"
	"fmt"
	"time"

	"backend-cragmap/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The document store and account table see light traffic from one service.
const maxPostgresConns = 8

var (
	newPoolFn  = pgxpool.NewWithConfig
	pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
)

// PoolConfig parses the connection url and applies the service's pool limits.
func PoolConfig(url string) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pcfg.MaxConns = maxPostgresConns
	pcfg.MaxConnIdleTime = 5 * time.Minute
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	pcfg.ConnConfig.RuntimeParams["application_name"] = "cragmap"
	return pcfg, nil
}

// ConnectPostgres opens and pings the pool behind the remote document store.
func ConnectPostgres(cfg config.Config) (*pgxpool.Pool, error) {
	pcfg, err := PoolConfig(cfg.PostgresURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
