package data

import (
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewCacheRepo,
	NewImageLoader,
	NewPhotoHasher,
	NewFaceClient,
	NewPhotoClassifier,
	NewNameTable,
)

// NewCacheRepo opens the cache store selected by c.Store.Driver.
func NewCacheRepo(c *conf.Data, logger log.Logger) (biz.CacheRepo, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data/store"))

	var (
		repo    biz.CacheRepo
		closeFn func() error
		err     error
	)
	switch c.Store.Driver {
	case "", "memory":
		repo, closeFn = NewMemoryStore(), func() error { return nil }
	case "bolt":
		var s *BoltStore
		s, err = NewBoltStore(c.Bolt.Path)
		repo, closeFn = s, func() error { return s.Close() }
	case "sqlite":
		var s *SqliteStore
		s, err = NewSqliteStore(c.Sqlite.Path)
		repo, closeFn = s, func() error { return s.Close() }
	case "redis":
		var s *RedisStore
		s, err = NewRedisStore(c.Redis)
		repo, closeFn = s, func() error { return s.Close() }
	case "postgres":
		var s *PostgresStore
		s, err = NewPostgresStore(c.Database, helper)
		repo, closeFn = s, func() error { s.Close(); return nil }
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", c.Store.Driver, err)
	}

	helper.Infof("cache store %q ready", driverName(c.Store.Driver))
	cleanup := func() {
		helper.Infof("closing cache store %q", driverName(c.Store.Driver))
		if err := closeFn(); err != nil {
			helper.Errorf("close cache store: %v", err)
		}
	}
	return repo, cleanup, nil
}

func driverName(driver string) string {
	if driver == "" {
		return "memory"
	}
	return driver
}

// newPgxPoolConfig creates a pgxpool.Config from conf.Database
func newPgxPoolConfig(c *conf.Database) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.Source)
	if err != nil {
		return nil, err
	}
	// Configure connection pool settings
	pool := c.Pool
	if pool.MaxOpenConns > 0 {
		cfg.MaxConns = pool.MaxOpenConns
	}
	if pool.MinIdleConns > 0 {
		cfg.MinConns = pool.MinIdleConns
	}
	if pool.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = time.Duration(pool.MaxConnLifetime) * time.Minute
	}
	if pool.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = time.Duration(pool.MaxConnIdleTime) * time.Minute
	}

	return cfg, nil
}
