package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/mocks"
	"github.com/phrazzld/connkeeper/internal/store"
)

func failingPool(err error) *mocks.MockPool {
	p := mocks.NewMockPool()
	p.QueryFn = func(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
		return nil, err
	}
	return p
}

func TestExecute_Success(t *testing.T) {
	pool := mocks.NewMockPool()
	pool.QueryFn = func(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
		assert.Equal(t, "SELECT name FROM users WHERE id = @id", query)
		assert.Equal(t, dbpool.Params{"id": 7}, params)
		return &dbpool.Result{
			Columns: []string{"name"},
			Rows:    []map[string]any{{"name": "ada"}},
		}, nil
	}
	exec, connector, _ := newTestExecutor(t, pool)

	res, err := exec.Execute(context.Background(), "SELECT name FROM users WHERE id = @id", dbpool.Params{"id": 7})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "ada", res.Rows[0]["name"])
	assert.Equal(t, 1, connector.Calls())
	assert.Equal(t, 1, pool.QueryCount())
}

func TestExecute_RetriesTransientErrorOnFreshPool(t *testing.T) {
	first := failingPool(fmt.Errorf("read: %w", syscall.ECONNRESET))
	second := mocks.NewMockPool()
	exec, connector, buf := newTestExecutor(t, first, second)

	res, err := exec.Execute(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	assert.NotNil(t, res)

	assert.Equal(t, 2, connector.Calls(), "the failing pool must be replaced")
	assert.True(t, first.Closed())
	assert.Equal(t, 1, first.QueryCount())
	assert.Equal(t, 1, second.QueryCount())

	retries := buf.EntriesWithMessage(t, "retrying after transient database error")
	require.Len(t, retries, 1)
	assert.EqualValues(t, 1, retries[0]["attempt"])
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	cause := &pgconn.PgError{Code: "08006", Message: "connection failure"}
	exec, connector, _ := newTestExecutor(t, failingPool(cause), failingPool(cause), failingPool(cause))

	_, err := exec.Execute(context.Background(), "SELECT 1", nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, store.ErrRetriesExhausted)
	assert.ErrorIs(t, err, cause, "the last observed error is returned")

	var transient *store.TransientNetworkError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempt)
	assert.True(t, transient.Exhausted)
	assert.Equal(t, 3, connector.Calls())
}

func TestExecute_MaxAttemptsOverride(t *testing.T) {
	t.Run("single attempt", func(t *testing.T) {
		pool := failingPool(syscall.ETIMEDOUT)
		exec, connector, _ := newTestExecutor(t, pool)

		_, err := exec.Execute(context.Background(), "SELECT 1", nil, store.WithMaxAttempts(1))
		require.Error(t, err)
		assert.ErrorIs(t, err, store.ErrRetriesExhausted)
		assert.Equal(t, 1, pool.QueryCount())
		assert.Equal(t, 1, connector.Calls())
	})

	t.Run("more attempts than default", func(t *testing.T) {
		cause := errors.New("write: broken pipe")
		exec, connector, _ := newTestExecutor(t,
			failingPool(cause), failingPool(cause), failingPool(cause), failingPool(cause), mocks.NewMockPool())

		_, err := exec.Execute(context.Background(), "SELECT 1", nil, store.WithMaxAttempts(5))
		require.NoError(t, err)
		assert.Equal(t, 5, connector.Calls())
	})

	t.Run("non-positive means one", func(t *testing.T) {
		pool := failingPool(syscall.ECONNRESET)
		exec, _, _ := newTestExecutor(t, pool)

		_, err := exec.Execute(context.Background(), "SELECT 1", nil, store.WithMaxAttempts(0))
		require.Error(t, err)
		assert.Equal(t, 1, pool.QueryCount())
	})
}

func TestExecute_QueryErrorIsNotRetried(t *testing.T) {
	cause := &pgconn.PgError{Code: "42601", Message: "syntax error at or near \"SELEC\""}
	pool := failingPool(cause)
	exec, connector, _ := newTestExecutor(t, pool)

	_, err := exec.Execute(context.Background(), "SELEC 1", nil)
	require.Error(t, err)

	var queryErr *store.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, store.ErrRetriesExhausted)
	assert.Equal(t, 1, pool.QueryCount())
	assert.Equal(t, 1, connector.Calls())
	assert.False(t, pool.Closed(), "a query error must not discard the pool")
}

func TestExecute_ErrorMapperAppliedToQueryErrors(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	connector := mocks.NewMockConnector(failingPool(cause))
	m := newTestManager(t, connector)
	exec := store.NewExecutor(m,
		store.WithRetryPolicy(fastPolicy),
		store.WithErrorMapper(func(err error) error {
			return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
		}))

	_, err := exec.Execute(context.Background(), "INSERT INTO t VALUES (1)", nil)
	require.Error(t, err)
	assert.True(t, store.IsDuplicateError(err))

	var queryErr *store.QueryError
	assert.ErrorAs(t, err, &queryErr)
}

func TestExecute_ConnectFailures(t *testing.T) {
	t.Run("login failure is returned at once", func(t *testing.T) {
		connector := mocks.NewMockConnector()
		connector.ConnectFn = func(ctx context.Context, onError func(error)) (dbpool.Pool, error) {
			return nil, &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
		}
		exec := store.NewExecutor(newTestManager(t, connector), store.WithRetryPolicy(fastPolicy))

		_, err := exec.Execute(context.Background(), "SELECT 1", nil)
		require.Error(t, err)
		assert.True(t, dbpool.IsAuthFailure(err))
		assert.Equal(t, 1, connector.Calls())
	})

	t.Run("connect timeout is retried", func(t *testing.T) {
		var calls int
		connector := mocks.NewMockConnector()
		connector.ConnectFn = func(ctx context.Context, onError func(error)) (dbpool.Pool, error) {
			calls++
			if calls == 1 {
				return nil, fmt.Errorf("dial: %w", syscall.ETIMEDOUT)
			}
			return mocks.NewMockPool(), nil
		}
		exec := store.NewExecutor(newTestManager(t, connector), store.WithRetryPolicy(fastPolicy))

		_, err := exec.Execute(context.Background(), "SELECT 1", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, connector.Calls())
	})
}

func TestExecute_CancellationIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := mocks.NewMockPool()
	pool.QueryFn = func(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
		cancel()
		return nil, errors.New("read: connection reset by peer")
	}
	exec, _, _ := newTestExecutor(t, pool)

	_, err := exec.Execute(ctx, "SELECT pg_sleep(10)", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, pool.QueryCount())
}

func TestExecute_CancellationDuringBackoff(t *testing.T) {
	connector := mocks.NewMockConnector(failingPool(syscall.ECONNRESET))
	exec := store.NewExecutor(newTestManager(t, connector), store.WithRetryPolicy(store.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := exec.Execute(ctx, "SELECT 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecute_ConcurrentFailuresReconnectOnce(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(2)
	first := mocks.NewMockPool()
	first.QueryFn = func(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
		// both callers observe the torn-down pool before either retries
		barrier.Done()
		barrier.Wait()
		return nil, syscall.ECONNRESET
	}
	second := mocks.NewMockPool()
	exec, connector, _ := newTestExecutor(t, first, second)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = exec.Execute(context.Background(), "SELECT 1", nil)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 2, connector.Calls(), "exactly one reconnect")
	assert.Equal(t, 2, second.QueryCount())
}

func TestExecute_LogsRedactedQuery(t *testing.T) {
	exec, _, buf := newTestExecutor(t, failingPool(errors.New("permission denied for table secrets")))

	_, err := exec.Execute(context.Background(), "SELECT * FROM secrets WHERE token = 'hunter2'", nil)
	require.Error(t, err)

	entries := buf.EntriesWithMessage(t, "query failed")
	require.Len(t, entries, 1)
	assert.Equal(t, "query", entries[0]["error_class"])
	assert.NotContains(t, entries[0]["query"], "hunter2")
	assert.NotEmpty(t, entries[0]["request_id"])
}
