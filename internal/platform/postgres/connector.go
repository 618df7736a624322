package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phrazzld/connkeeper/internal/config"
	"github.com/phrazzld/connkeeper/internal/dbpool"
)

// applicationName is reported to the server in pg_stat_activity.
const applicationName = "connkeeper"

// Connector opens pgxpool pools from a fixed configuration.
type Connector struct {
	cfg config.DatabaseConfig
	log *slog.Logger
}

var _ dbpool.Connector = (*Connector)(nil)

// NewConnector returns a Connector for cfg. The configuration is read once;
// later changes to cfg are not observed.
func NewConnector(cfg config.DatabaseConfig, log *slog.Logger) *Connector {
	if log == nil {
		log = slog.Default()
	}
	return &Connector{
		cfg: cfg,
		log: log.With(slog.String("component", "postgres")),
	}
}

// PoolConfig translates cfg into pgxpool settings.
func PoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.PoolMax > 0 {
		poolCfg.MaxConns = int32(cfg.PoolMax)
	}
	poolCfg.MinConns = int32(cfg.PoolMin)
	if cfg.IdleTimeout > 0 {
		poolCfg.MaxConnIdleTime = cfg.IdleTimeout
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	params := poolCfg.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	if cfg.RequestTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.RequestTimeout.Milliseconds(), 10)
	}

	return poolCfg, nil
}

// Connect creates a pool and verifies it with a ping. onError is invoked when
// the server terminates a session in a way that makes the whole pool suspect,
// such as an administrator shutdown.
func (c *Connector) Connect(ctx context.Context, onError func(error)) (dbpool.Pool, error) {
	poolCfg, err := PoolConfig(c.cfg)
	if err != nil {
		return nil, err
	}

	p := &Pool{onError: onError, log: c.log}
	p.healthy.Store(true)

	defaultOnPgError := poolCfg.ConnConfig.OnPgError
	poolCfg.ConnConfig.OnPgError = func(conn *pgconn.PgConn, pgErr *pgconn.PgError) bool {
		keep := defaultOnPgError == nil || defaultOnPgError(conn, pgErr)
		if !keep && isSessionFatal(pgErr) {
			p.fail(pgErr)
		}
		return keep
	}

	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	p.pool = pool

	c.log.Info("database connection established",
		slog.String("host", c.cfg.Host),
		slog.Int("port", int(poolCfg.ConnConfig.Port)),
		slog.String("database", c.cfg.Name),
		slog.String("sslmode", c.cfg.SSLMode()),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)
	return p, nil
}

// isSessionFatal reports whether pgErr ended a session for a reason that
// affects every connection to the server.
func isSessionFatal(pgErr *pgconn.PgError) bool {
	return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
}
