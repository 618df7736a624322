package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/phrazzld/connkeeper/internal/dbpool"
)

// MockPool implements dbpool.Pool and dbpool.Pinger for testing
type MockPool struct {
	// Function fields for customizable behavior
	QueryFn func(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error)
	BeginFn func(ctx context.Context, opts dbpool.TxOptions) (dbpool.Tx, error)
	PingFn  func(ctx context.Context) error
	CloseFn func()

	unhealthy atomic.Bool
	closed    atomic.Bool
	queries   atomic.Int32
	begins    atomic.Int32
}

// NewMockPool creates a healthy pool whose queries return an empty result
// and whose transactions are fresh MockTx values.
func NewMockPool() *MockPool {
	return &MockPool{}
}

// Query implements dbpool.Querier
func (p *MockPool) Query(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
	p.queries.Add(1)
	if p.QueryFn != nil {
		return p.QueryFn(ctx, query, params)
	}
	return &dbpool.Result{}, nil
}

// Begin implements dbpool.Pool
func (p *MockPool) Begin(ctx context.Context, opts dbpool.TxOptions) (dbpool.Tx, error) {
	p.begins.Add(1)
	if p.BeginFn != nil {
		return p.BeginFn(ctx, opts)
	}
	return NewMockTx(), nil
}

// Healthy implements dbpool.Pool. A pool is healthy until it is closed or
// marked unhealthy.
func (p *MockPool) Healthy() bool {
	return !p.unhealthy.Load() && !p.closed.Load()
}

// Close implements dbpool.Pool
func (p *MockPool) Close() {
	p.closed.Store(true)
	if p.CloseFn != nil {
		p.CloseFn()
	}
}

// Ping implements dbpool.Pinger
func (p *MockPool) Ping(ctx context.Context) error {
	if p.PingFn != nil {
		return p.PingFn(ctx)
	}
	return nil
}

// SetUnhealthy makes Healthy report false, simulating a dropped connection.
func (p *MockPool) SetUnhealthy() {
	p.unhealthy.Store(true)
}

// Closed reports whether Close has been called.
func (p *MockPool) Closed() bool {
	return p.closed.Load()
}

// QueryCount returns the number of Query calls.
func (p *MockPool) QueryCount() int {
	return int(p.queries.Load())
}

// BeginCount returns the number of Begin calls.
func (p *MockPool) BeginCount() int {
	return int(p.begins.Load())
}

// MockTx implements dbpool.Tx for testing
type MockTx struct {
	QueryFn    func(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error)
	CommitFn   func(ctx context.Context) error
	RollbackFn func(ctx context.Context) error

	mu         sync.Mutex
	statements []string
	commits    atomic.Int32
	rollbacks  atomic.Int32
}

// NewMockTx creates a transaction that accepts every statement.
func NewMockTx() *MockTx {
	return &MockTx{}
}

// Query implements dbpool.Querier
func (tx *MockTx) Query(ctx context.Context, query string, params dbpool.Params) (*dbpool.Result, error) {
	tx.mu.Lock()
	tx.statements = append(tx.statements, query)
	tx.mu.Unlock()

	if tx.QueryFn != nil {
		return tx.QueryFn(ctx, query, params)
	}
	return &dbpool.Result{}, nil
}

// Commit implements dbpool.Tx
func (tx *MockTx) Commit(ctx context.Context) error {
	tx.commits.Add(1)
	if tx.CommitFn != nil {
		return tx.CommitFn(ctx)
	}
	return nil
}

// Rollback implements dbpool.Tx
func (tx *MockTx) Rollback(ctx context.Context) error {
	tx.rollbacks.Add(1)
	if tx.RollbackFn != nil {
		return tx.RollbackFn(ctx)
	}
	return nil
}

// Statements returns the statements issued on the transaction, in order.
func (tx *MockTx) Statements() []string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return append([]string(nil), tx.statements...)
}

// Commits returns the number of Commit calls.
func (tx *MockTx) Commits() int {
	return int(tx.commits.Load())
}

// Rollbacks returns the number of Rollback calls.
func (tx *MockTx) Rollbacks() int {
	return int(tx.rollbacks.Load())
}
