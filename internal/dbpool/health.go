package dbpool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/phrazzld/connkeeper/internal/redact"
)

// HealthMonitor periodically probes the installed pool and invalidates it when
// it is unhealthy, so the next caller reconnects. It never opens a pool itself.
type HealthMonitor struct {
	manager *Manager
	cron    *cron.Cron
	timeout time.Duration
	log     *slog.Logger
}

// NewHealthMonitor schedules probes of m using a cron schedule such as "@every 30s".
// Each ping is bounded by timeout.
func NewHealthMonitor(m *Manager, schedule string, timeout time.Duration) (*HealthMonitor, error) {
	h := &HealthMonitor{
		manager: m,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout: timeout,
		log:     m.log.With(slog.String("subcomponent", "health")),
	}
	if _, err := h.cron.AddFunc(schedule, func() { h.Check(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid health check schedule %q: %w", schedule, err)
	}
	return h, nil
}

// Start begins running scheduled probes in the background.
func (h *HealthMonitor) Start() {
	h.cron.Start()
}

// Stop halts scheduling and waits for a running probe to finish.
func (h *HealthMonitor) Stop() {
	<-h.cron.Stop().Done()
}

// Check probes the installed pool once. It reports false when the pool was
// found unhealthy and discarded.
func (h *HealthMonitor) Check(ctx context.Context) bool {
	p := h.manager.installed()
	if p == nil {
		return true
	}

	if !p.Healthy() {
		h.log.Warn("installed pool reports itself disconnected")
		h.manager.Invalidate(p)
		return false
	}

	pinger, ok := p.(Pinger)
	if !ok {
		return true
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if err := pinger.Ping(ctx); err != nil {
		h.log.Warn("database ping failed, discarding pool",
			slog.String("error", redact.Error(err)))
		h.manager.Invalidate(p)
		return false
	}
	return true
}
