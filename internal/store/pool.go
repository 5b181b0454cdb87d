package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
)

// PoolConfig describes how to build the connection pool. Zero values keep
// the driver defaults (or whatever pool_* parameters the URL carries).
type PoolConfig struct {
	URL               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration

	// TLSPermissive opts in to accepting any server certificate chain.
	TLSPermissive bool

	// QueryLogLevel is a tracelog level name ("trace" ... "none").
	// Empty disables query tracing.
	QueryLogLevel string

	TrustOptions []TrustOption
}

// NewPool parses cfg.URL, resolves the trust policy from its sslmode and
// builds the pool. No connection is opened here; physical connections are
// established on first acquisition.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, *Trust, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing database URL: %w: %w", ErrInitialization, err)
	}

	mode, err := ParseSSLMode(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("reading encryption mode: %w: %w", ErrInitialization, err)
	}

	trust, err := ResolveTrust(mode, cfg.TLSPermissive, cfg.TrustOptions...)
	if err != nil {
		return nil, nil, err
	}
	trust.Configure(&poolCfg.ConnConfig.Config)

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	if cfg.QueryLogLevel != "" {
		tracer, err := newQueryTracer(cfg.QueryLogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("configuring query logging: %w: %w", ErrInitialization, err)
		}
		poolCfg.ConnConfig.Tracer = tracer
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		slog.DebugContext(ctx, "database connection established",
			"pid", conn.PgConn().PID(),
			"tls", trust.Policy().String(),
		)
		return nil
	}
	poolCfg.BeforeClose = func(conn *pgx.Conn) {
		slog.Debug("database connection closing", "pid", conn.PgConn().PID())
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w: %w", ErrInitialization, err)
	}

	slog.Info("database pool created",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns,
		"sslmode", string(mode),
		"tls", trust.Policy().String(),
	)

	return pool, trust, nil
}

// newQueryTracer routes pgx query tracing to slog.
func newQueryTracer(level string) (*tracelog.TraceLog, error) {
	lvl, err := tracelog.LogLevelFromString(level)
	if err != nil {
		return nil, err
	}

	logger := tracelog.LoggerFunc(func(ctx context.Context, l tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]slog.Attr, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, slog.Any(k, v))
		}
		slog.LogAttrs(ctx, slogLevel(l), msg, attrs...)
	})

	return &tracelog.TraceLog{Logger: logger, LogLevel: lvl}, nil
}

func slogLevel(l tracelog.LogLevel) slog.Level {
	switch l {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		return slog.LevelDebug
	case tracelog.LogLevelInfo:
		return slog.LevelInfo
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
