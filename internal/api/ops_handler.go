package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/phrazzld/connkeeper/internal/api/shared"
	"github.com/phrazzld/connkeeper/internal/dbpool"
	"github.com/phrazzld/connkeeper/internal/store"
)

// readinessQuery is the statement used to confirm the database answers.
const readinessQuery = "SELECT 1"

// StatusResponse is the body of the liveness and readiness endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	State           string `json:"state"`
	Connects        uint64 `json:"connects"`
	ConnectFailures uint64 `json:"connect_failures"`
	Resets          uint64 `json:"resets"`
}

// OpsHandler serves the operational endpoints for one pool manager.
type OpsHandler struct {
	manager      *dbpool.Manager
	executor     *store.Executor
	probeTimeout time.Duration
}

// NewOpsHandler creates an OpsHandler. Readiness probes are bounded by
// probeTimeout when it is positive.
func NewOpsHandler(m *dbpool.Manager, exec *store.Executor, probeTimeout time.Duration) *OpsHandler {
	return &OpsHandler{
		manager:      m,
		executor:     exec,
		probeTimeout: probeTimeout,
	}
}

// Routes registers the operational endpoints on r.
func (h *OpsHandler) Routes(r chi.Router) {
	r.Get("/livez", h.Livez)
	r.Get("/readyz", h.Readyz)
	r.Get("/stats", h.Stats)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// Livez reports that the process is serving requests. It never touches the
// database.
func (h *OpsHandler) Livez(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{Status: "ok"})
}

// Readyz runs a single-attempt query through the executor, connecting first
// if no pool is installed.
func (h *OpsHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.probeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.probeTimeout)
		defer cancel()
	}

	if _, err := h.executor.Execute(ctx, readinessQuery, nil, store.WithMaxAttempts(1)); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{Status: "ready"})
}

// Stats returns the pool manager's state and counters.
func (h *OpsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s := h.manager.Stats()
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		State:           s.State.String(),
		Connects:        s.Connects,
		ConnectFailures: s.ConnectFailures,
		Resets:          s.Resets,
	})
}
