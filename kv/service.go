package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"recordstore"
	"recordstore/kv/adapter"
)

// Service wraps a KV adapter and provides the key-value service interface.
type Service struct {
	adapter    adapter.Adapter
	connection adapter.Connection
	config     *adapter.Config
}

// Ensure Service implements the service interface.
var _ recordstore.Service = (*Service)(nil)

// NewService creates a new KV service with the given adapter.
func NewService(adpt adapter.Adapter, config *adapter.Config) *Service {
	return &Service{
		adapter: adpt,
		config:  config,
	}
}

// Connect establishes the key-value store connection, retrying the initial
// ping ConnectRetries times.
func (s *Service) Connect(ctx context.Context) error {
	connection, err := s.adapter.Connect(ctx, s.config)
	if err != nil {
		return recordstore.WrapConnectionError(err, "connect", s.adapter.Name(), s.config.Host)
	}

	for attempt := 0; ; attempt++ {
		err = s.ping(ctx, connection)
		if err == nil || attempt >= s.config.ConnectRetries {
			break
		}
		log.Warn().Err(err).
			Str("adapter", s.adapter.Name()).
			Int("attempt", attempt+1).
			Msg("store not reachable, retrying")

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(s.config.RetryDelay):
			continue
		}
		break
	}
	if err != nil {
		_ = connection.Close()
		return recordstore.WrapConnectionError(err, "ping", s.adapter.Name(), s.config.Host)
	}

	s.connection = connection
	return nil
}

func (s *Service) ping(ctx context.Context, connection adapter.Connection) error {
	pingCtx, cancel := recordstore.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()
	return connection.Ping(pingCtx)
}

// Connection returns the underlying connection.
func (s *Service) Connection() adapter.Connection {
	return s.connection
}

// Adapter returns the underlying adapter.
func (s *Service) Adapter() adapter.Adapter {
	return s.adapter
}

// Close closes the connection.
func (s *Service) Close() error {
	if s.connection != nil {
		return s.connection.Close()
	}
	return nil
}

// Ping checks the connection.
func (s *Service) Ping(ctx context.Context) error {
	if s.connection == nil {
		return recordstore.ErrConnectionClosed
	}
	return s.connection.Ping(ctx)
}

// Stats returns connection statistics.
func (s *Service) Stats() any {
	if s.connection != nil {
		return s.connection.Stats()
	}
	return nil
}

// NewRepository creates a new repository for the given schema.
func (s *Service) NewRepository(schema recordstore.Schema) recordstore.Store {
	return NewRepository(s, schema)
}

// Repository creates a new repository for the given schema (typed variant of NewRepository).
func (s *Service) Repository(schema recordstore.Schema) *Repository {
	return NewRepository(s, schema)
}

// Basic KV operations

// Get retrieves a value by key.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	return s.connection.Get(ctx, key)
}

// Set stores a value without expiration.
func (s *Service) Set(ctx context.Context, key string, value []byte) error {
	return s.connection.Set(ctx, key, value, 0)
}

// Delete removes a key.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.connection.Delete(ctx, key)
}

// Exists checks if a key exists.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	return s.connection.Exists(ctx, key)
}

// JSON operations

// GetJSON retrieves and unmarshals a JSON value.
func (s *Service) GetJSON(ctx context.Context, key string, target any) error {
	data, err := s.connection.Get(ctx, key)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

// SetJSON marshals and stores a JSON value.
func (s *Service) SetJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return s.connection.Set(ctx, key, data, 0)
}

// Batch operations

// MGet retrieves multiple values.
func (s *Service) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	return s.connection.MGet(ctx, keys)
}

// MDelete removes multiple keys.
func (s *Service) MDelete(ctx context.Context, keys []string) error {
	return s.connection.MDelete(ctx, keys)
}

// Keys returns all keys matching a pattern.
func (s *Service) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.connection.Keys(ctx, pattern)
}

// Incr increments a key by 1.
func (s *Service) Incr(ctx context.Context, key string) (int64, error) {
	return s.connection.Incr(ctx, key)
}

// WithTimeout bounds ctx by the configured query timeout.
func (s *Service) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return recordstore.WithTimeout(ctx, s.config.QueryTimeout)
}

// Open creates and connects a new KV service using the specified adapter.
func Open(ctx context.Context, adpt adapter.Adapter, config *adapter.Config) (*Service, error) {
	service := NewService(adpt, config)

	if err := service.Connect(ctx); err != nil {
		return nil, err
	}

	return service, nil
}

// OpenWithName creates and connects a new KV service using the specified adapter name.
func OpenWithName(ctx context.Context, adapterName string, config *adapter.Config, opts ...adapter.Option) (*Service, error) {
	config.Apply(opts...)

	adpt, err := adapter.Get(adapterName)
	if err != nil {
		return nil, recordstore.WrapDriverError(err, adapterName, "get adapter")
	}

	return Open(ctx, adpt, config)
}
