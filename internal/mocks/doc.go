// Package mocks provides centralized mock implementations for testing.
//
// The mocks follow a single pattern: a struct with a function field per
// interface method, falling back to a sensible default when the field is nil.
// Each mock also records how it was used so tests can assert on call counts.
//
// Usage:
//
//	import "github.com/phrazzld/connkeeper/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    pool := mocks.NewMockPool()
//	    pool.QueryFn = func(ctx context.Context, q string, p dbpool.Params) (*dbpool.Result, error) {
//	        return nil, syscall.ECONNRESET
//	    }
//	    connector := mocks.NewMockConnector(pool)
//	    manager := dbpool.NewManager(connector)
//
//	    // Use the manager in your test...
//	}
//
// When adding a new mock to this package:
//  1. Create a new file named after the interface being mocked
//  2. Implement the mock struct with function fields for each interface method
//  3. Document any helper methods or special functionality
package mocks
