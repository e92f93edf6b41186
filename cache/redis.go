package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
)

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to cfg.Addr and pings it once. The caller decides
// whether a failed ping is fatal.
func NewRedisStore(ctx context.Context, cfg config.Redis) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is empty")
	}
	opts := &redis.Options{Addr: cfg.Addr, DB: cfg.DB}
	if cfg.Pass != "" {
		opts.Password = cfg.Pass
	}
	rc := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		rc.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisStore{client: rc}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
