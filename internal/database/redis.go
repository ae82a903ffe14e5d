package database

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianotes/chronicle/internal/config"
	"github.com/redis/go-redis/v9"
)

// Redis wraps the Redis client. The sweeper uses it as a cross-process
// lease so that prune and session-expiry jobs run on at most one
// chronicled instance at a time.
type Redis struct {
	*redis.Client
}

// NewRedis creates a new Redis connection.
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{Client: client}, nil
}

// HealthCheck verifies the Redis connection is healthy.
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx).Err()
}

// AcquireLease takes the named lease for ttl. It returns false when
// another holder already has it.
func (r *Redis) AcquireLease(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := r.SetNX(ctx, "chronicle:lease:"+name, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	return ok, nil
}

// ReleaseLease releases the named lease.
func (r *Redis) ReleaseLease(ctx context.Context, name string) error {
	if err := r.Del(ctx, "chronicle:lease:"+name).Err(); err != nil {
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}
	return nil
}
