package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// RedisConfig holds connection settings for the Redis-backed cache.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Username and Password authenticate against Redis ACLs (optional).
	Username string
	Password string

	// DB selects the Redis logical database.
	DB int

	// KeyPrefix namespaces all keys written by this cache.
	KeyPrefix string

	// DefaultTTL is applied when Set is called with a non-positive TTL.
	DefaultTTL time.Duration

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis is a distributed StateCache backed by a Redis server. GETDEL
// provides the at-most-once Take semantics across processes.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedis connects to Redis and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("cache: redis address is required")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: failed to connect to redis: %w", err)
	}

	return newRedis(client, cfg.KeyPrefix, cfg.DefaultTTL), nil
}

// NewRedisWithClient wraps a pre-configured client. Used in tests with
// miniredis.
func NewRedisWithClient(client redis.UniversalClient, keyPrefix string, defaultTTL time.Duration) *Redis {
	return newRedis(client, keyPrefix, defaultTTL)
}

func newRedis(client redis.UniversalClient, keyPrefix string, defaultTTL time.Duration) *Redis {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Redis{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       defaultTTL,
	}
}

// Set stores value under key.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, r.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set failed: %w", err)
	}
	return nil
}

// Get returns the value for key without consuming it.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: redis get failed: %w", err)
	}
	return value, true, nil
}

// Take atomically retrieves and deletes the value for key.
func (r *Redis) Take(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.GetDel(ctx, r.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: redis getdel failed: %w", err)
	}
	return value, true, nil
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache: redis del failed: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
