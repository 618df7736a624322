package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/phrazzld/connkeeper/internal/dbpool"
)

// MockConnector implements dbpool.Connector for testing
type MockConnector struct {
	// ConnectFn overrides the default behavior of handing out the queued pools.
	ConnectFn func(ctx context.Context, onError func(error)) (dbpool.Pool, error)

	calls atomic.Int32

	mu       sync.Mutex
	pools    []*MockPool
	handlers []func(error)
}

// NewMockConnector creates a connector that returns the given pools in order,
// one per Connect call. Once they run out it creates new ones.
func NewMockConnector(pools ...*MockPool) *MockConnector {
	return &MockConnector{pools: pools}
}

// Connect implements dbpool.Connector
func (c *MockConnector) Connect(ctx context.Context, onError func(error)) (dbpool.Pool, error) {
	c.calls.Add(1)

	c.mu.Lock()
	c.handlers = append(c.handlers, onError)
	var next *MockPool
	if len(c.pools) > 0 {
		next, c.pools = c.pools[0], c.pools[1:]
	}
	c.mu.Unlock()

	if c.ConnectFn != nil {
		return c.ConnectFn(ctx, onError)
	}
	if next == nil {
		next = NewMockPool()
	}
	return next, nil
}

// Calls returns the number of Connect calls.
func (c *MockConnector) Calls() int {
	return int(c.calls.Load())
}

// Fail invokes the error handler registered by the n-th Connect call
// (0-based), simulating an asynchronous pool-level failure.
func (c *MockConnector) Fail(n int, err error) {
	c.mu.Lock()
	if n < 0 || n >= len(c.handlers) {
		c.mu.Unlock()
		return
	}
	h := c.handlers[n]
	c.mu.Unlock()
	h(err)
}
