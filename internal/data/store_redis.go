package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mednat/tandem-extras/internal/biz"
	"github.com/mednat/tandem-extras/internal/conf"
	redis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "tandem"

// RedisStore keeps each namespace under <prefix>:<namespace>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(c *conf.Redis) (*RedisStore, error) {
	// Build connection options from config
	opts := &redis.Options{
		Addr:     c.Addr,
		Network:  c.Network,
		Password: c.Password,
		DB:       c.DB,
	}
	if c.ReadTimeout != nil {
		opts.ReadTimeout = c.ReadTimeout.AsDuration()
	}
	if c.WriteTimeout != nil {
		opts.WriteTimeout = c.WriteTimeout.AsDuration()
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", c.Addr, err)
	}

	return NewRedisStoreWithClient(client, c.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(ns biz.Namespace) string {
	return s.prefix + ":" + string(ns)
}

func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) Get(ctx context.Context, ns biz.Namespace) ([]byte, error) {
	v, err := s.client.Get(ctx, s.key(ns)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return v, err
}

func (s *RedisStore) Set(ctx context.Context, ns biz.Namespace, value []byte) error {
	return s.client.Set(ctx, s.key(ns), value, 0).Err()
}
