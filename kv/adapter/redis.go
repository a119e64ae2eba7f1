package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 256

// RedisAdapter implements the Adapter interface on top of go-redis.
type RedisAdapter struct {
	client *redis.Client
}

// RedisConnection implements the Connection interface for Redis.
type RedisConnection struct {
	client *redis.Client
}

// NewRedisAdapter creates a new Redis adapter.
func NewRedisAdapter() *RedisAdapter {
	return &RedisAdapter{}
}

// Name returns the adapter name.
func (a *RedisAdapter) Name() string {
	return "redis"
}

// Connect creates the client. Reachability is checked by the caller with Ping.
func (a *RedisAdapter) Connect(ctx context.Context, config *Config) (Connection, error) {
	opts, err := a.clientOptions(config)
	if err != nil {
		return nil, err
	}
	a.client = redis.NewClient(opts)
	return &RedisConnection{client: a.client}, nil
}

func (a *RedisAdapter) clientOptions(config *Config) (*redis.Options, error) {
	if url := config.Options["url"]; url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}

	db := 0
	if v := config.Options["database"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid redis database %q: %w", v, err)
		}
		db = n
	}

	return &redis.Options{
		Addr:            a.ConnectionString(config),
		Username:        config.Username,
		Password:        config.Password,
		DB:              db,
		DialTimeout:     config.ConnectTimeout,
		ReadTimeout:     config.QueryTimeout,
		WriteTimeout:    config.QueryTimeout,
		PoolSize:        config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: config.ConnMaxLifetime,
		ConnMaxIdleTime: config.ConnMaxIdleTime,
	}, nil
}

// ConnectionString returns the host:port address of the server.
func (a *RedisAdapter) ConnectionString(config *Config) string {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Error classification
func (a *RedisAdapter) IsKeyNotFoundError(err error) bool {
	return isKeyNotFound(err) || errors.Is(err, redis.Nil)
}

func (a *RedisAdapter) IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "i/o timeout")
}

// Close releases the client.
func (a *RedisAdapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// RedisConnection implementations

// Get retrieves a value by key.
func (c *RedisConnection) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return data, err
}

// Set stores a value with optional expiration.
func (c *RedisConnection) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Delete removes a key.
func (c *RedisConnection) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// Exists checks if a key exists.
func (c *RedisConnection) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// MGet retrieves the values of the keys that exist.
func (c *RedisConnection) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// MDelete removes multiple keys.
func (c *RedisConnection) MDelete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Keys walks the keyspace with SCAN so large databases are not blocked.
func (c *RedisConnection) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Incr increments a counter.
func (c *RedisConnection) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Ping checks the server.
func (c *RedisConnection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stats returns client pool statistics.
func (c *RedisConnection) Stats() any {
	return *c.client.PoolStats()
}

// Close closes the client.
func (c *RedisConnection) Close() error {
	return c.client.Close()
}
