package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/redact"
)

// ErrStatementTimeout is returned when a statement runs past the configured
// request timeout. It is a statement failure, not a connectivity one.
var ErrStatementTimeout = errors.New("canceling statement due to statement timeout")

// Pool adapts a *sql.DB to dbpool.Pool.
type Pool struct {
	db      *sql.DB
	healthy atomic.Bool
	onError func(error)
	log     *slog.Logger

	// requestTimeout bounds each statement when positive.
	requestTimeout time.Duration
}

var (
	_ dbpool.Pool   = (*Pool)(nil)
	_ dbpool.Pinger = (*Pool)(nil)
)

// NewPool wraps db. onError, if non-nil, is called the first time the pool
// observes a connection that database/sql could not recover.
func NewPool(db *sql.DB, onError func(error), log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{db: db, onError: onError, log: log}
	p.healthy.Store(true)
	return p
}

// Query runs query with named parameters. Statements that return rows are
// collected in full; others report only the affected row count.
func (p *Pool) Query(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
	res, err := run(ctx, p.db, query, params, p.requestTimeout)
	if err != nil {
		p.observe(err)
	}
	return res, err
}

// Begin starts a transaction.
func (p *Pool) Begin(ctx context.Context, opts dbpool.TxOptions) (dbpool.Tx, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		p.observe(err)
		return nil, err
	}
	return &Tx{tx: tx, pool: p}, nil
}

// Healthy reports false once the pool has been closed or has lost a
// connection it could not replace.
func (p *Pool) Healthy() bool {
	return p.healthy.Load()
}

// Ping verifies a connection to the database is still alive.
func (p *Pool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Stats exposes database/sql's connection counters.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Close closes the database.
func (p *Pool) Close() {
	p.healthy.Store(false)
	if err := p.db.Close(); err != nil {
		p.log.Debug("error closing database", slog.String("error", redact.Error(err)))
	}
}

// observe marks the pool unhealthy when err shows a dead connection. The
// handler runs on its own goroutine since it may close this pool.
func (p *Pool) observe(err error) {
	if !errors.Is(err, driver.ErrBadConn) && !errors.Is(err, sql.ErrConnDone) {
		return
	}
	if !p.healthy.CompareAndSwap(true, false) {
		return
	}
	p.log.Warn("database connection lost", slog.String("error", redact.Error(err)))
	if p.onError != nil {
		go p.onError(err)
	}
}

// Tx adapts a *sql.Tx to dbpool.Tx.
type Tx struct {
	tx   *sql.Tx
	pool *Pool
}

var _ dbpool.Tx = (*Tx)(nil)

// Query runs query inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
	res, err := run(ctx, t.tx, query, params, t.pool.requestTimeout)
	if err != nil {
		t.pool.observe(err)
	}
	return res, err
}

// Commit commits the transaction.
func (t *Tx) Commit(context.Context) error {
	err := t.tx.Commit()
	if err != nil {
		t.pool.observe(err)
	}
	return err
}

// Rollback aborts the transaction.
func (t *Tx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		t.pool.observe(err)
	}
	return err
}

// execQuerier is satisfied by both *sql.DB and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// run executes query on q. When timeout is positive the statement gets its
// own deadline; running past it yields ErrStatementTimeout rather than the
// context error, which would read as a network timeout.
func run(
	ctx context.Context,
	q execQuerier,
	query string,
	params dbpool.Params,
	timeout time.Duration,
) (*dbpool.Result, error) {
	if timeout <= 0 {
		return runStatement(ctx, q, query, params)
	}

	stmtCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := runStatement(stmtCtx, q, query, params)
	if err != nil && ctx.Err() == nil && errors.Is(stmtCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrStatementTimeout, timeout)
	}
	return res, err
}

func runStatement(
	ctx context.Context,
	q execQuerier,
	query string,
	params dbpool.Params,
) (*dbpool.Result, error) {
	args := namedArgs(params)

	if !returnsRows(query) {
		res, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		return &dbpool.Result{RowsAffected: n}, nil
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// namedArgs converts params into sql.NamedArg values, ordered by name.
func namedArgs(params dbpool.Params) []any {
	if len(params) == 0 {
		return nil
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, len(names))
	for i, name := range names {
		args[i] = sql.Named(name, params[name])
	}
	return args
}

var rowKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"VALUES":  true,
	"PRAGMA":  true,
	"EXPLAIN": true,
	"SHOW":    true,
	"TABLE":   true,
}

// returnsRows guesses whether query produces a result set.
func returnsRows(query string) bool {
	upper := strings.ToUpper(strings.TrimLeft(query, " \t\r\n("))
	keyword := upper
	if i := strings.IndexAny(upper, " \t\r\n(;"); i >= 0 {
		keyword = upper[:i]
	}
	return rowKeywords[keyword] || strings.Contains(upper, "RETURNING")
}

// collect reads every row into a Result and closes rows.
func collect(rows *sql.Rows) (*dbpool.Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &dbpool.Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			record[col] = values[i]
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.RowsAffected = int64(len(result.Rows))
	return result, nil
}
