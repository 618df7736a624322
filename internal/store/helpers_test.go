package store_test

import (
	"testing"
	"time"

	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/mocks"
	"github.com/phrazzld/connkeeper/internal/platform/logger"
	"github.com/phrazzld/connkeeper/internal/store"
)

// fastPolicy keeps the retry schedule shape with millisecond delays.
var fastPolicy = store.RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   time.Millisecond,
	MaxDelay:    5 * time.Millisecond,
}

func newTestManager(t *testing.T, c dbpool.Connector) *dbpool.Manager {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	m := dbpool.NewManager(c, dbpool.WithLogger(log))
	t.Cleanup(m.Close)
	return m
}

func newTestExecutor(t *testing.T, pools ...*mocks.MockPool) (*store.Executor, *mocks.MockConnector, *logger.TestLogBuffer) {
	t.Helper()
	connector := mocks.NewMockConnector(pools...)
	m := newTestManager(t, connector)
	log, buf := logger.GetTestLogger(t)
	return store.NewExecutor(m, store.WithRetryPolicy(fastPolicy), store.WithExecutorLogger(log)), connector, buf
}
