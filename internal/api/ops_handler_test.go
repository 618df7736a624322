package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/connkeeper/internal/api"
	"github.com/phrazzld/connkeeper/internal/api/shared"
	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/mocks"
	"github.com/phrazzld/connkeeper/internal/platform/logger"
	"github.com/phrazzld/connkeeper/internal/store"
)

func newTestRouter(t *testing.T, connector dbpool.Connector) (http.Handler, *dbpool.Manager) {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	m := dbpool.NewManager(connector, dbpool.WithLogger(log))
	t.Cleanup(m.Close)

	exec := store.NewExecutor(m, store.WithExecutorLogger(log))
	r := chi.NewRouter()
	api.NewOpsHandler(m, exec, time.Second).Routes(r)
	return r, m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLivezDoesNotConnect(t *testing.T) {
	connector := mocks.NewMockConnector()
	router, _ := newTestRouter(t, connector)

	rec := get(t, router, "/livez")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, 0, connector.Calls())
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		pool := mocks.NewMockPool()
		router, _ := newTestRouter(t, mocks.NewMockConnector(pool))

		rec := get(t, router, "/readyz")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
		assert.Equal(t, 1, pool.QueryCount())
	})

	t.Run("unavailable", func(t *testing.T) {
		connector := mocks.NewMockConnector()
		connector.ConnectFn = func(ctx context.Context, onError func(error)) (dbpool.Pool, error) {
			return nil, errors.New("connection refused")
		}
		router, _ := newTestRouter(t, connector)

		rec := get(t, router, "/readyz")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body shared.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "database unavailable", body.Error)
		assert.NotContains(t, rec.Body.String(), "refused")
	})

	t.Run("transient failure is not retried", func(t *testing.T) {
		pool := mocks.NewMockPool()
		pool.QueryFn = func(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
			return nil, errors.New("read: connection reset by peer")
		}
		connector := mocks.NewMockConnector(pool)
		router, _ := newTestRouter(t, connector)

		rec := get(t, router, "/readyz")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, 1, pool.QueryCount())
	})
}

func TestStats(t *testing.T) {
	router, m := newTestRouter(t, mocks.NewMockConnector())

	rec := get(t, router, "/stats")
	assert.JSONEq(t, `{"state":"uninitialized","connects":0,"connect_failures":0,"resets":0}`, rec.Body.String())

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Reset()
	_, err = m.Acquire(context.Background())
	require.NoError(t, err)

	rec = get(t, router, "/stats")
	var body api.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "connected", body.State)
	assert.Equal(t, uint64(2), body.Connects)
	assert.Equal(t, uint64(1), body.Resets)
}

func TestMetricsExposed(t *testing.T) {
	router, m := newTestRouter(t, mocks.NewMockConnector())
	_, err := m.Acquire(context.Background())
	require.NoError(t, err)

	rec := get(t, router, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "connkeeper_pool_connects_total")
}
