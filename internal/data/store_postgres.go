package data

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"
)

// PostgresStore keeps namespaces in the cache_namespaces table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects the pool and applies pending migrations.
func NewPostgresStore(c *conf.Database, helper *log.Helper) (*PostgresStore, error) {
	ctx := context.Background()
	// config pool
	pgxConfig, err := newPgxPoolConfig(c)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgxConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// database/sql handle for migrations only
	db, err := sql.Open(c.Driver, c.Source)
	if err != nil {
		pool.Close()
		return nil, err
	}
	defer db.Close()

	if err := RunMigrate(c, db); err != nil {
		pool.Close()
		return nil, err
	}
	helper.Info("postgres migrations applied")

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) Get(ctx context.Context, ns biz.Namespace) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM cache_namespaces WHERE name = $1`, string(ns)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // Not found
	}
	return value, err
}

func (s *PostgresStore) Set(ctx context.Context, ns biz.Namespace, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_namespaces (name, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		string(ns), value)
	return err
}
