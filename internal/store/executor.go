package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/platform/logger"
	"github.com/phrazzld/connkeeper/internal/redact"
)

// Executor runs statements against the Manager's pool, retrying transient
// connectivity failures with exponential backoff.
type Executor struct {
	manager  *dbpool.Manager
	policy   RetryPolicy
	mapError func(error) error
	log      *slog.Logger
}

var _ Runner = (*Executor)(nil)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRetryPolicy sets the retry policy. Zero fields fall back to defaults.
func WithRetryPolicy(p RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		e.policy = p.normalized()
	}
}

// WithErrorMapper installs a driver-specific mapper applied to non-transient
// statement errors before they are wrapped in a *QueryError, e.g. postgres.MapError.
func WithErrorMapper(fn func(error) error) ExecutorOption {
	return func(e *Executor) {
		if fn != nil {
			e.mapError = fn
		}
	}
}

// WithExecutorLogger sets the base logger. By default the logger carried by
// each call's context is used.
func WithExecutorLogger(log *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// NewExecutor creates an Executor that obtains pools from m.
func NewExecutor(m *dbpool.Manager, opts ...ExecutorOption) *Executor {
	e := &Executor{
		manager:  m,
		policy:   DefaultRetryPolicy(),
		mapError: func(err error) error { return err },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecOption configures a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	maxAttempts int
}

// WithMaxAttempts overrides the number of attempts for one call.
// Values below 1 are treated as 1.
func WithMaxAttempts(n int) ExecOption {
	return func(o *execOptions) {
		o.maxAttempts = n
	}
}

// Execute runs query with the named params and returns its result set.
//
// Each attempt acquires a pool from the Manager. A transient connectivity
// failure with attempts remaining invalidates that pool, sleeps for the
// policy's backoff and tries again; every other failure is returned at once.
// When attempts run out the last observed error is returned.
func (e *Executor) Execute(
	ctx context.Context,
	query string,
	params dbpool.Params,
	opts ...ExecOption,
) (*dbpool.Result, error) {
	o := execOptions{maxAttempts: e.policy.MaxAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxAttempts < 1 {
		o.maxAttempts = 1
	}

	log := e.loggerFor(ctx).With(slog.String("query", redact.Query(query)))

	var (
		attempt int
		used    dbpool.Pool
		lastErr error
		result  *dbpool.Result
	)

	inner := e.policy.Backoff(o.maxAttempts)
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := inner.Next()
		if stop {
			return 0, true
		}
		e.manager.Invalidate(used)
		log.Warn("retrying after transient database error",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", o.maxAttempts),
			slog.Duration("backoff", next),
			slog.String("error", redact.Error(lastErr)))
		return next, false
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		pool, err := e.manager.Acquire(ctx)
		if err != nil {
			used = nil
			return e.classify(ctx, err, attempt, o.maxAttempts, &lastErr, false)
		}
		used = pool

		res, err := pool.Query(ctx, query, params)
		if err == nil {
			result = res
			return nil
		}
		return e.classify(ctx, err, attempt, o.maxAttempts, &lastErr, true)
	})
	attemptsHistogram.Observe(float64(attempt))

	if err != nil {
		queryErrorsTotal.WithLabelValues(errorClass(err)).Inc()
		log.Error("query failed",
			slog.Int("attempts", attempt),
			slog.String("error_class", errorClass(err)),
			slog.String("error", redact.Error(err)))
		return nil, err
	}
	if result == nil {
		return nil, ErrRetriesExhausted
	}

	if attempt > 1 {
		log.Info("query succeeded after retry", slog.Int("attempts", attempt))
	}
	return result, nil
}

func (e *Executor) loggerFor(ctx context.Context) *slog.Logger {
	log := logger.FromContext(ctx)
	id := logger.RequestID(ctx)
	if e.log != nil {
		log = e.log
		if id != "" {
			log = log.With(slog.String("request_id", id))
		}
	}
	if id == "" {
		log = log.With(slog.String("request_id", uuid.NewString()))
	}
	return log.With(slog.String("component", "store"))
}

// classify decides whether err from the given attempt is retried. Statement
// errors that are not transient become *QueryError; connect failures that are
// not transient are returned as they are.
func (e *Executor) classify(
	ctx context.Context,
	err error,
	attempt, maxAttempts int,
	lastErr *error,
	fromStatement bool,
) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		*lastErr = ctxErr
		return ctxErr
	}

	if IsTransient(err) {
		*lastErr = &TransientNetworkError{
			Attempt:   attempt,
			Exhausted: attempt >= maxAttempts,
			Err:       err,
		}
		return retry.RetryableError(*lastErr)
	}

	if fromStatement {
		err = &QueryError{Err: e.mapError(err)}
	}
	*lastErr = err
	return err
}

// errorClass names the taxonomy class of err for logs and metrics.
func errorClass(err error) string {
	var (
		transient *TransientNetworkError
		query     *QueryError
	)
	switch {
	case errors.As(err, &transient):
		return "transient"
	case errors.As(err, &query):
		return "query"
	case dbpool.IsConnectionError(err):
		return "connection"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
