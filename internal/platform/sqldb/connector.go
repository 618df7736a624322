package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/phrazzld/connkeeper/internal/config"
	"github.com/phrazzld/connkeeper/internal/dbpool"
)

// SQLiteDriver is the database/sql driver name registered by modernc.org/sqlite.
const SQLiteDriver = "sqlite"

// sqlitePragmas are applied to every SQLite connection.
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Connector opens *sql.DB pools for a driver and data source name.
type Connector struct {
	driverName string
	dsn        string
	cfg        config.DatabaseConfig
	log        *slog.Logger
}

var _ dbpool.Connector = (*Connector)(nil)

// NewConnector returns a Connector for the named database/sql driver. Pool
// limits and timeouts are taken from cfg.
func NewConnector(driverName, dsn string, cfg config.DatabaseConfig, log *slog.Logger) *Connector {
	if log == nil {
		log = slog.Default()
	}
	return &Connector{
		driverName: driverName,
		dsn:        dsn,
		cfg:        cfg,
		log:        log.With(slog.String("component", "sqldb"), slog.String("driver", driverName)),
	}
}

// NewSQLiteConnector returns a Connector for the SQLite database at cfg.Path.
// An in-memory database lives only as long as its connection, so it is
// limited to a single connection that is never closed for idleness.
func NewSQLiteConnector(cfg config.DatabaseConfig, log *slog.Logger) *Connector {
	if isMemoryPath(cfg.Path) {
		cfg.PoolMax = 1
		cfg.PoolMin = 1
		cfg.IdleTimeout = 0
	}

	dsn := cfg.Path
	if strings.Contains(dsn, "?") {
		dsn += "&" + sqlitePragmas
	} else {
		dsn += "?" + sqlitePragmas
	}
	return NewConnector(SQLiteDriver, dsn, cfg, log)
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Connect opens the database, applies pool limits and verifies it with a ping.
func (c *Connector) Connect(ctx context.Context, onError func(error)) (dbpool.Pool, error) {
	db, err := sql.Open(c.driverName, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if c.cfg.PoolMax > 0 {
		db.SetMaxOpenConns(c.cfg.PoolMax)
		db.SetMaxIdleConns(max(c.cfg.PoolMin, 1))
	}
	if c.cfg.IdleTimeout > 0 {
		db.SetConnMaxIdleTime(c.cfg.IdleTimeout)
	}

	if c.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.log.Info("database connection established",
		slog.Int("max_open_conns", c.cfg.PoolMax))
	p := NewPool(db, onError, c.log)
	p.requestTimeout = c.cfg.RequestTimeout
	return p, nil
}
