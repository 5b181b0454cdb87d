package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daap14/billstore/internal/event"
	"github.com/daap14/billstore/internal/secret"
)

// DBTX is the query surface shared by *pgxpool.Pool, *pgxpool.Conn and
// pgx.Tx, so repositories run the same code inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store aggregates the connection pool, settings and event bus. One Store
// is built per process and passed to every domain service.
type Store struct {
	pool     *pgxpool.Pool
	trust    *Trust
	settings Settings
	secrets  *secret.Box
	bus      event.Bus
}

// Options configures New.
type Options struct {
	Pool     PoolConfig
	Settings Settings
	Bus      event.Bus // nil means event.Noop
}

// New builds the pool and the store around it.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, trust, err := NewPool(ctx, opts.Pool)
	if err != nil {
		return nil, err
	}

	s, err := NewWithPool(pool, opts.Settings, opts.Bus)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.trust = trust
	return s, nil
}

// NewWithPool wraps an existing pool. The store takes ownership of it.
func NewWithPool(pool *pgxpool.Pool, settings Settings, bus event.Bus) (*Store, error) {
	box, err := secret.New([]byte(settings.CryptKey.Reveal()))
	if err != nil {
		return nil, fmt.Errorf("configuring secret box: %w: %w", ErrInitialization, err)
	}
	if bus == nil {
		bus = event.Noop{}
	}
	return &Store{
		pool:     pool,
		settings: settings,
		secrets:  box,
		bus:      bus,
	}, nil
}

// Conn checks out a connection. It blocks until one is idle or a new one
// is established within the pool bound; only ctx limits the wait. The
// caller must Release it.
func (s *Store) Conn(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w: %w", ErrConnectionAcquisition, err)
	}
	return conn, nil
}

// Transaction runs fn in a transaction on a freshly acquired connection.
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	_, err := InTransaction(ctx, s, func(ctx context.Context, tx pgx.Tx) (struct{}, error) {
		return struct{}{}, fn(ctx, tx)
	})
	return err
}

// Publish hands committed events to the bus. Publication failures are
// logged only: the data they describe is already durable.
func (s *Store) Publish(ctx context.Context, events ...event.Event) {
	for _, e := range events {
		if err := s.bus.Publish(ctx, e); err != nil {
			slog.ErrorContext(ctx, "failed to publish event",
				"type", string(e.Type),
				"aggregate_id", e.AggregateID.String(),
				"error", err,
			)
		}
	}
}

// Pool returns the underlying pool for read paths that need no transaction.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Trust returns the TLS trust decision, or nil for stores built by
// NewWithPool.
func (s *Store) Trust() *Trust {
	return s.trust
}

// Settings returns the shared settings.
func (s *Store) Settings() Settings {
	return s.settings
}

// Secrets returns the box sealing values with the crypt key.
func (s *Store) Secrets() *secret.Box {
	return s.secrets
}

// Ping verifies a connection can be established and used.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w: %w", ErrConnectionAcquisition, err)
	}
	return nil
}

// Stats returns a snapshot of the pool accounting.
func (s *Store) Stats() *pgxpool.Stat {
	return s.pool.Stat()
}

// Close waits for checked-out connections to be released and closes all
// connections.
func (s *Store) Close() {
	s.pool.Close()
	slog.Info("database pool closed")
}
