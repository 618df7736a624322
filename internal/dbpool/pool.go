package dbpool

import (
	"context"
	"database/sql"
)

// Params maps named query parameters to their values.
type Params map[string]any

// Result is a fully materialized result set.
type Result struct {
	Columns      []string
	Rows         []map[string]any
	RowsAffected int64
}

// TxOptions configures a transaction. The zero value starts a read-write
// transaction at the server's default isolation level.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Querier executes a command with named parameters and returns its result set.
type Querier interface {
	Query(ctx context.Context, query string, params Params) (*Result, error)
}

// Tx is a transaction bound to a single leased connection.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool is a reusable set of live connections to the database server.
// Implementations must be comparable (typically pointer types); the Manager
// tracks pools by identity.
type Pool interface {
	Querier

	// Begin starts a transaction on a connection leased from the pool.
	Begin(ctx context.Context, opts TxOptions) (Tx, error)

	// Healthy reports whether the pool still considers itself connected.
	// It must not perform I/O.
	Healthy() bool

	// Close releases every connection held by the pool.
	Close()
}

// Pinger is implemented by pools that can verify connectivity with a round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connector opens new pools.
//
// onError is the pool-level error handler. Implementations call it
// asynchronously whenever the pool observes a failure that invalidates it,
// such as a lost connection. It may be called more than once and may be
// called before Connect returns; the Manager ignores calls for pools that are
// not currently installed.
type Connector interface {
	Connect(ctx context.Context, onError func(error)) (Pool, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, onError func(error)) (Pool, error)

// Connect calls f(ctx, onError).
func (f ConnectorFunc) Connect(ctx context.Context, onError func(error)) (Pool, error) {
	return f(ctx, onError)
}
