package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClipboard shares the clipboard between processes through Redis
type RedisClipboard struct {
	client *redis.Client
	config Config
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Config holds common clipboard configuration
	Config Config
}

// NewRedisClipboard connects to Redis and checks the connection
func NewRedisClipboard(ctx context.Context, config RedisConfig) (*RedisClipboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return NewRedisClipboardWithClient(client, config.Config), nil
}

// NewRedisClipboardWithClient creates a Redis clipboard with an existing client
func NewRedisClipboardWithClient(client *redis.Client, config Config) *RedisClipboard {
	return &RedisClipboard{client: client, config: config}
}

// Put replaces the clipboard content
func (r *RedisClipboard) Put(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, r.config.key(), data, r.config.TTL).Err()
}

// Get returns the clipboard content
func (r *RedisClipboard) Get(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.config.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	return data, nil
}

// Clear empties the clipboard
func (r *RedisClipboard) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.config.key()).Err()
}

// Close closes the Redis connection
func (r *RedisClipboard) Close() error {
	return r.client.Close()
}
