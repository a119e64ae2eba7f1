package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryAdapter implements the Adapter interface using in-memory storage.
type MemoryAdapter struct {
	store *MemoryStore
}

// MemoryStore represents an in-memory key-value store.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*MemoryValue
	stats *MemoryStats
}

// MemoryValue represents a value in memory with expiration.
type MemoryValue struct {
	Data      []byte
	ExpiresAt *time.Time
}

func (v *MemoryValue) expired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

// MemoryStats tracks memory store statistics.
type MemoryStats struct {
	Keys         int64
	Gets         int64
	Sets         int64
	Deletes      int64
	Hits         int64
	Misses       int64
	LastAccessed time.Time
}

// MemoryConnection implements the Connection interface for memory storage.
type MemoryConnection struct {
	store *MemoryStore
}

// NewMemoryAdapter creates a new memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		store: &MemoryStore{
			data:  make(map[string]*MemoryValue),
			stats: &MemoryStats{},
		},
	}
}

// Name returns the adapter name.
func (a *MemoryAdapter) Name() string {
	return "memory"
}

// Connect returns a connection sharing the adapter's store.
func (a *MemoryAdapter) Connect(ctx context.Context, config *Config) (Connection, error) {
	return &MemoryConnection{store: a.store}, nil
}

// ConnectionString returns a memory connection string.
func (a *MemoryAdapter) ConnectionString(config *Config) string {
	return "memory://localhost"
}

// Error classification
func (a *MemoryAdapter) IsKeyNotFoundError(err error) bool {
	return isKeyNotFound(err)
}

func (a *MemoryAdapter) IsConnectionError(err error) bool {
	return false
}

// Close releases resources.
func (a *MemoryAdapter) Close() error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	a.store.data = make(map[string]*MemoryValue)
	a.store.stats = &MemoryStats{}

	return nil
}

// MemoryConnection implementations

// Get retrieves a value by key.
func (c *MemoryConnection) Get(ctx context.Context, key string) ([]byte, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	c.store.stats.Gets++
	c.store.stats.LastAccessed = time.Now()

	value, ok := c.lookup(key)
	if !ok {
		c.store.stats.Misses++
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	c.store.stats.Hits++
	return append([]byte(nil), value.Data...), nil
}

// lookup returns a live value, dropping it when expired. Callers hold the write lock.
func (c *MemoryConnection) lookup(key string) (*MemoryValue, bool) {
	value, exists := c.store.data[key]
	if !exists {
		return nil, false
	}
	if value.expired(time.Now()) {
		delete(c.store.data, key)
		c.store.stats.Keys--
		return nil, false
	}
	return value, true
}

// Set stores a value with optional expiration.
func (c *MemoryConnection) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	c.store.stats.Sets++
	c.store.stats.LastAccessed = time.Now()
	c.set(key, append([]byte(nil), value...), expiration)
	return nil
}

func (c *MemoryConnection) set(key string, value []byte, expiration time.Duration) {
	var expiresAt *time.Time
	if expiration > 0 {
		expires := time.Now().Add(expiration)
		expiresAt = &expires
	}

	if _, exists := c.store.data[key]; !exists {
		c.store.stats.Keys++
	}

	c.store.data[key] = &MemoryValue{
		Data:      value,
		ExpiresAt: expiresAt,
	}
}

// Delete removes a key.
func (c *MemoryConnection) Delete(ctx context.Context, key string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	c.store.stats.Deletes++
	c.store.stats.LastAccessed = time.Now()

	if _, exists := c.store.data[key]; exists {
		delete(c.store.data, key)
		c.store.stats.Keys--
	}

	return nil
}

// Exists checks if a key exists.
func (c *MemoryConnection) Exists(ctx context.Context, key string) (bool, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	_, ok := c.lookup(key)
	return ok, nil
}

// Batch operations
func (c *MemoryConnection) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := c.Get(ctx, key)
		if err != nil {
			if isKeyNotFound(err) {
				continue
			}
			return nil, err
		}
		result[key] = value
	}
	return result, nil
}

func (c *MemoryConnection) MDelete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := c.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns all live keys matching the pattern.
func (c *MemoryConnection) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	now := time.Now()
	var keys []string
	for key, value := range c.store.data {
		if !value.expired(now) && matchPattern(key, pattern) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// Incr increments the integer stored at key.
func (c *MemoryConnection) Incr(ctx context.Context, key string) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	var current int64
	if value, ok := c.lookup(key); ok {
		n, err := strconv.ParseInt(string(value.Data), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value at %s is not an integer: %w", key, err)
		}
		current = n
	}

	current++
	c.set(key, []byte(strconv.FormatInt(current, 10)), 0)
	return current, nil
}

// Health and stats
func (c *MemoryConnection) Ping(ctx context.Context) error {
	return nil
}

func (c *MemoryConnection) Stats() any {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	return *c.store.stats
}

func (c *MemoryConnection) Close() error {
	return nil
}

// matchPattern supports exact keys, "*" and trailing-star prefixes.
func matchPattern(key, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(key, prefix)
	}

	return key == pattern
}
