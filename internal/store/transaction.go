package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/platform/logger"
	"github.com/phrazzld/connkeeper/internal/redact"
)

// TxFn is a unit of work executed within a database transaction.
// The transaction is committed if it returns nil, or rolled back otherwise.
type TxFn func(ctx context.Context, tx dbpool.Tx) error

// TxOption configures a transaction started by WithTransaction.
type TxOption func(*dbpool.TxOptions)

// WithIsolation requests an isolation level for the transaction.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(o *dbpool.TxOptions) {
		o.Isolation = level
	}
}

// WithReadOnly starts a read-only transaction.
func WithReadOnly() TxOption {
	return func(o *dbpool.TxOptions) {
		o.ReadOnly = true
	}
}

// WithTransaction runs fn inside a transaction on a pool obtained from m.
//
// If fn succeeds the transaction is committed and fn's result returned. If fn
// fails the transaction is rolled back and fn's error returned; should the
// rollback fail too, a *TransactionError carrying both is returned and still
// unwraps to fn's error. A panic in fn rolls back and re-panics. Exactly one
// of commit or rollback is attempted. There is no retry at this layer.
func WithTransaction[T any](
	ctx context.Context,
	m *dbpool.Manager,
	fn func(ctx context.Context, tx dbpool.Tx) (T, error),
	opts ...TxOption,
) (T, error) {
	var zero T
	log := logger.FromContext(ctx).With(slog.String("component", "store"))

	var txOpts dbpool.TxOptions
	for _, opt := range opts {
		opt(&txOpts)
	}

	pool, err := m.Acquire(ctx)
	if err != nil {
		return zero, err
	}

	tx, err := pool.Begin(ctx, txOpts)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", redact.Error(err)))
		if IsTransient(err) && ctx.Err() == nil {
			m.Invalidate(pool)
		}
		transactionsTotal.WithLabelValues("begin_failed").Inc()
		return zero, &TransactionError{Op: TxOpBegin, Err: err}
	}

	// rollback must still reach the server when ctx is already canceled
	cleanupCtx := context.WithoutCancel(ctx)

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(cleanupCtx); rbErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", redact.Error(rbErr)),
					slog.String("panic", fmt.Sprint(p)))
			} else {
				log.Error("rolled back transaction after panic",
					slog.String("panic", fmt.Sprint(p)))
			}
			transactionsTotal.WithLabelValues("panicked").Inc()
			// ALLOW-PANIC: propagating caught panic from transaction
			panic(p)
		}
	}()

	result, err := fn(ctx, tx)
	if err != nil {
		if rbErr := tx.Rollback(cleanupCtx); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", redact.Error(rbErr)),
				slog.String("original_error", redact.Error(err)))
			transactionsTotal.WithLabelValues("rollback_failed").Inc()
			return zero, &TransactionError{Op: TxOpRollback, Err: err, RollbackErr: rbErr}
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", redact.Error(err)))
		transactionsTotal.WithLabelValues("rolled_back").Inc()
		return zero, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", redact.Error(err)))
		transactionsTotal.WithLabelValues("commit_failed").Inc()
		return zero, &TransactionError{Op: TxOpCommit, Err: err}
	}

	log.Debug("transaction committed successfully")
	transactionsTotal.WithLabelValues("committed").Inc()
	return result, nil
}

// RunInTransaction is WithTransaction for units of work that return only an error.
func RunInTransaction(ctx context.Context, m *dbpool.Manager, fn TxFn, opts ...TxOption) error {
	_, err := WithTransaction(ctx, m, func(ctx context.Context, tx dbpool.Tx) (struct{}, error) {
		return struct{}{}, fn(ctx, tx)
	}, opts...)
	return err
}
