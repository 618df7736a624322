package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/redact"
)

// Pool adapts a *pgxpool.Pool to dbpool.Pool.
type Pool struct {
	pool    *pgxpool.Pool
	healthy atomic.Bool
	onError func(error)
	log     *slog.Logger
}

var (
	_ dbpool.Pool   = (*Pool)(nil)
	_ dbpool.Pinger = (*Pool)(nil)
)

// Query runs query with named arguments and collects every row.
func (p *Pool) Query(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
	rows, err := p.pool.Query(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Begin starts a transaction with the requested isolation and access mode.
func (p *Pool) Begin(ctx context.Context, opts dbpool.TxOptions) (dbpool.Tx, error) {
	txOpts, err := pgxTxOptions(opts)
	if err != nil {
		return nil, err
	}

	tx, err := p.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Healthy reports false once the pool has been closed or the server has
// terminated one of its sessions.
func (p *Pool) Healthy() bool {
	return p.healthy.Load()
}

// Ping acquires a connection and checks that the server responds.
func (p *Pool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Stat exposes pgxpool's connection counters.
func (p *Pool) Stat() *pgxpool.Stat {
	return p.pool.Stat()
}

// Close closes every connection in the pool.
func (p *Pool) Close() {
	p.healthy.Store(false)
	if p.pool != nil {
		p.pool.Close()
	}
}

// fail marks the pool unhealthy and reports err to the pool-level handler
// the first time it is called. pgx calls it while the failing connection is
// still checked out, and closing a pgxpool waits for checked-out connections,
// so the handler runs on its own goroutine.
func (p *Pool) fail(err error) {
	if !p.healthy.CompareAndSwap(true, false) {
		return
	}
	p.log.Warn("database session terminated by server",
		slog.String("error", redact.Error(err)))
	if p.onError != nil {
		go p.onError(err)
	}
}

// Tx adapts a pgx.Tx to dbpool.Tx.
type Tx struct {
	tx pgx.Tx
}

var _ dbpool.Tx = (*Tx)(nil)

// Query runs query inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
	rows, err := t.tx.Query(ctx, query, namedArgs(params)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// Commit commits the transaction.
func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback rolls the transaction back.
func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// namedArgs converts params into pgx query arguments. No arguments are
// passed for an empty map so queries without placeholders are sent as is.
func namedArgs(params dbpool.Params) []any {
	if len(params) == 0 {
		return nil
	}
	return []any{pgx.NamedArgs(params)}
}

// collect reads every row into a Result and closes rows.
func collect(rows pgx.Rows) (*dbpool.Result, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}

	return &dbpool.Result{
		Columns:      columns,
		Rows:         records,
		RowsAffected: rows.CommandTag().RowsAffected(),
	}, nil
}

// pgxTxOptions maps driver-neutral transaction options onto pgx's.
func pgxTxOptions(opts dbpool.TxOptions) (pgx.TxOptions, error) {
	var txOpts pgx.TxOptions

	switch opts.Isolation {
	case sql.LevelDefault:
	case sql.LevelReadUncommitted:
		txOpts.IsoLevel = pgx.ReadUncommitted
	case sql.LevelReadCommitted:
		txOpts.IsoLevel = pgx.ReadCommitted
	case sql.LevelRepeatableRead, sql.LevelSnapshot:
		txOpts.IsoLevel = pgx.RepeatableRead
	case sql.LevelSerializable, sql.LevelLinearizable:
		txOpts.IsoLevel = pgx.Serializable
	default:
		return txOpts, fmt.Errorf("unsupported isolation level %s", opts.Isolation)
	}

	if opts.ReadOnly {
		txOpts.AccessMode = pgx.ReadOnly
	}
	return txOpts, nil
}
