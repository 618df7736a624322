package dbpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/connkeeper/internal/redact"
)

// State is the lifecycle state of a Manager.
type State int

const (
	// StateUninitialized means no pool exists and no connect is in flight.
	StateUninitialized State = iota
	// StateConnecting means a connect attempt is in flight.
	StateConnecting
	// StateConnected means a pool is installed.
	StateConnected
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "uninitialized"
	}
}

// Stats is a point-in-time snapshot of a Manager.
type Stats struct {
	State           State
	Connects        uint64
	ConnectFailures uint64
	Resets          uint64
}

// attempt is a one-shot future for a single connect operation. done is
// closed exactly once, after pool and err have been set.
type attempt struct {
	id   string
	gen  uint64
	done chan struct{}
	pool Pool
	err  error
}

// Manager owns the shared pool and the pending connect attempt.
// It is safe for concurrent use.
type Manager struct {
	connector Connector
	log       *slog.Logger

	mu      sync.Mutex
	pool    Pool
	poolGen uint64
	pending *attempt
	gen     uint64
	closed  bool

	connects        uint64
	connectFailures uint64
	resets          uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager returns a Manager that opens pools with connector.
// No connection is made until the first call to Acquire.
func NewManager(connector Connector, opts ...Option) *Manager {
	m := &Manager{
		connector: connector,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(slog.String("component", "dbpool"))
	return m
}

// Acquire returns a healthy pool, connecting if necessary.
//
// Callers arriving while a connect is in flight wait for that same attempt and
// observe its outcome. ctx bounds only the caller's wait; the shared attempt is
// bounded by the connector's own connect timeout.
func (m *Manager) Acquire(ctx context.Context) (Pool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}

	var stale Pool
	if m.pool != nil {
		if m.pool.Healthy() {
			p := m.pool
			m.mu.Unlock()
			return p, nil
		}
		stale = m.clearLocked()
	}

	a := m.pending
	if a == nil {
		a = m.startAttemptLocked(ctx)
	}
	m.mu.Unlock()

	if stale != nil {
		m.log.Warn("discarding unhealthy database pool")
		resetsTotal.WithLabelValues("unhealthy").Inc()
		closeQuietly(m.log, stale)
	}

	select {
	case <-a.done:
		return a.pool, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate discards p if it is still the installed pool, closing it so the
// next Acquire reconnects. Pools are compared by identity, so concurrent
// callers that observed the same failing pool reset it only once.
func (m *Manager) Invalidate(p Pool) bool {
	if p == nil {
		return false
	}

	m.mu.Lock()
	if m.pool == nil || m.pool != p {
		m.mu.Unlock()
		return false
	}
	stale := m.clearLocked()
	m.mu.Unlock()

	resetsTotal.WithLabelValues("invalidated").Inc()
	closeQuietly(m.log, stale)
	return true
}

// Reset force-closes the installed pool, if any. An in-flight connect attempt
// is left to complete.
func (m *Manager) Reset() {
	m.mu.Lock()
	stale := m.clearLocked()
	m.mu.Unlock()

	if stale != nil {
		resetsTotal.WithLabelValues("reset").Inc()
		closeQuietly(m.log, stale)
	}
}

// Close shuts the manager down. Subsequent calls to Acquire fail with
// ErrManagerClosed; a connect still in flight is closed when it completes.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stale := m.pool
	m.pool = nil
	m.mu.Unlock()

	if stale != nil {
		closeQuietly(m.log, stale)
	}
	m.log.Info("database pool manager closed")
}

// Stats returns a snapshot of the manager's state and counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := StateUninitialized
	switch {
	case m.pool != nil:
		state = StateConnected
	case m.pending != nil:
		state = StateConnecting
	}
	return Stats{
		State:           state,
		Connects:        m.connects,
		ConnectFailures: m.connectFailures,
		Resets:          m.resets,
	}
}

// installed returns the current pool without connecting.
func (m *Manager) installed() Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pool
}

// clearLocked drops the installed pool and returns it for closing.
// m.mu must be held.
func (m *Manager) clearLocked() Pool {
	stale := m.pool
	if stale != nil {
		m.resets++
	}
	m.pool = nil
	m.poolGen = 0
	return stale
}

// startAttemptLocked registers a new pending attempt and starts connecting.
// m.mu must be held.
func (m *Manager) startAttemptLocked(ctx context.Context) *attempt {
	m.gen++
	a := &attempt{
		id:   uuid.NewString(),
		gen:  m.gen,
		done: make(chan struct{}),
	}
	m.pending = a

	go m.connect(context.WithoutCancel(ctx), a)
	return a
}

func (m *Manager) connect(ctx context.Context, a *attempt) {
	log := m.log.With(slog.String("attempt_id", a.id))
	log.Debug("connecting to database")

	start := time.Now()
	pool, err := m.connector.Connect(ctx, m.errorHandler(a))
	connectDuration.Observe(time.Since(start).Seconds())
	if err == nil && pool == nil {
		err = ErrUnusableHandle
	}

	var orphan Pool
	m.mu.Lock()
	if m.pending == a {
		m.pending = nil
	}
	switch {
	case err != nil:
		a.err = &ConnectionError{Kind: ClassifyConnectError(err), Err: err}
		m.connectFailures++
	case m.closed:
		a.err = ErrManagerClosed
		orphan = pool
	default:
		a.pool = pool
		m.pool = pool
		m.poolGen = a.gen
		m.connects++
	}
	m.mu.Unlock()
	close(a.done)

	if orphan != nil {
		closeQuietly(log, orphan)
	}

	if a.err != nil {
		connectsTotal.WithLabelValues("failure").Inc()
		if connErr, ok := a.err.(*ConnectionError); ok {
			log.Error("database connection failed",
				slog.String("failure_kind", connErr.Kind.String()),
				slog.String("error", redact.Error(connErr.Err)),
				slog.Duration("elapsed", time.Since(start)))
		}
		return
	}
	connectsTotal.WithLabelValues("success").Inc()
	log.Info("database pool connected", slog.Duration("elapsed", time.Since(start)))
}

// errorHandler builds the pool-level error callback for attempt a. It only
// acts while a's pool is the installed one.
func (m *Manager) errorHandler(a *attempt) func(error) {
	return func(err error) {
		m.mu.Lock()
		if m.pool == nil || m.poolGen != a.gen {
			m.mu.Unlock()
			return
		}
		stale := m.clearLocked()
		m.pending = nil
		m.mu.Unlock()

		m.log.Warn("database pool reported an error, discarding it",
			slog.String("attempt_id", a.id),
			slog.String("error", redact.Error(err)))
		resetsTotal.WithLabelValues("pool_error").Inc()
		closeQuietly(m.log, stale)
	}
}

// closeQuietly closes p, swallowing any panic raised by the driver.
func closeQuietly(log *slog.Logger, p Pool) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug("ignoring failure while closing database pool",
				slog.String("error", fmt.Sprint(r)))
		}
	}()
	p.Close()
}
