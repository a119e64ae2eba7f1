package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"recordstore"
	"recordstore/sql/adapter"
)

// Service wraps a SQL adapter and provides the database service interface.
type Service struct {
	adapter adapter.Adapter
	db      *sql.DB
	config  *adapter.Config

	executor *QueryExecutor
	txs      *TransactionHandler
}

// Ensure Service implements the service interface.
var _ recordstore.Service = (*Service)(nil)
var _ recordstore.Transactor = (*Service)(nil)

// NewService creates a new SQL service with the given adapter.
func NewService(adpt adapter.Adapter, config *adapter.Config) *Service {
	return &Service{
		adapter: adpt,
		config:  config,
	}
}

// Connect establishes the database connection, retrying the initial ping
// ConnectRetries times while the server comes up.
func (s *Service) Connect(ctx context.Context) error {
	db, err := s.adapter.Connect(ctx, s.config)
	if err != nil {
		return recordstore.WrapConnectionError(err, "connect", s.adapter.Name(), s.config.Host)
	}

	for attempt := 0; ; attempt++ {
		err = s.ping(ctx, db)
		if err == nil || attempt >= s.config.ConnectRetries {
			break
		}
		log.Warn().Err(err).
			Str("adapter", s.adapter.Name()).
			Int("attempt", attempt+1).
			Msg("database not reachable, retrying")

		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(s.config.RetryDelay):
			continue
		}
		break
	}
	if err != nil {
		_ = db.Close()
		return recordstore.WrapConnectionError(err, "ping", s.adapter.Name(), s.config.Host)
	}

	s.db = db
	s.executor = NewQueryExecutor(db)
	s.txs = NewTransactionHandler(db, s.adapter)
	log.Debug().Str("adapter", s.adapter.Name()).Msg("connected to database")
	return nil
}

func (s *Service) ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := recordstore.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}

// DB returns the underlying database connection.
func (s *Service) DB() *sql.DB {
	return s.db
}

// Adapter returns the underlying adapter.
func (s *Service) Adapter() adapter.Adapter {
	return s.adapter
}

// Close closes the database connection.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	if s.db == nil {
		return recordstore.ErrConnectionClosed
	}
	return s.db.PingContext(ctx)
}

// Stats returns database connection statistics.
func (s *Service) Stats() any {
	if s.db != nil {
		return s.db.Stats()
	}
	return sql.DBStats{}
}

// NewRepository creates a new repository for the given schema.
func (s *Service) NewRepository(schema recordstore.Schema) recordstore.Store {
	return NewRepository(s, schema)
}

// Repository creates a new repository for the given schema (typed variant of NewRepository).
func (s *Service) Repository(schema recordstore.Schema) *Repository {
	return NewRepository(s, schema)
}

// WithTimeout bounds ctx by the configured query timeout.
func (s *Service) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return recordstore.WithTimeout(ctx, s.config.QueryTimeout)
}

// QueryExecutor returns the shared query executor.
func (s *Service) QueryExecutor() *QueryExecutor {
	return s.executor
}

// TransactionHandler returns the shared transaction handler.
func (s *Service) TransactionHandler() *TransactionHandler {
	return s.txs
}

// WithTx runs fn in a read-write transaction shared by every repository of this service.
func (s *Service) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return s.txs.WithTx(ctx, fn)
}

// WithReadTx runs fn in a read-only transaction.
func (s *Service) WithReadTx(ctx context.Context, fn func(context.Context) error) error {
	return s.txs.WithReadTx(ctx, fn)
}

// ExecuteSQL executes raw SQL (for table creation and similar setup).
func (s *Service) ExecuteSQL(ctx context.Context, query string, args ...any) error {
	if _, err := s.executor.ExecSQL(ctx, query, args...); err != nil {
		return recordstore.WrapFault(err, "", "execute_sql")
	}
	return nil
}

// Open creates and connects a new SQL service using the specified adapter.
func Open(ctx context.Context, adpt adapter.Adapter, config *adapter.Config) (*Service, error) {
	service := NewService(adpt, config)

	if err := service.Connect(ctx); err != nil {
		return nil, err
	}

	return service, nil
}

// OpenWithName creates and connects a new SQL service using the specified adapter name.
func OpenWithName(ctx context.Context, adapterName string, config *adapter.Config, opts ...adapter.Option) (*Service, error) {
	config.Apply(opts...)

	adpt, err := adapter.Get(adapterName)
	if err != nil {
		return nil, recordstore.WrapDriverError(err, adapterName, "get adapter")
	}

	return Open(ctx, adpt, config)
}
