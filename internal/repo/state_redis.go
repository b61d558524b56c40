package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Skotchmaster/storefront/internal/session"
)

const redisNamespace = "storefront:state"

// RedisRepo keeps client state under namespaced redis keys.
type RedisRepo struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisRepo(ctx context.Context, redisURL string, ttl time.Duration) (*RedisRepo, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisRepo{Client: client, TTL: ttl}, nil
}

func (r *RedisRepo) key(k string) string {
	return redisNamespace + ":" + k
}

func (r *RedisRepo) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := r.Client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *RedisRepo) Save(ctx context.Context, key string, value []byte) error {
	return r.Client.Set(ctx, r.key(key), value, r.TTL).Err()
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, r.key(key)).Err()
}

func (r *RedisRepo) Close() error {
	return r.Client.Close()
}
