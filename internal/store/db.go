package store

import (
	"context"

	"github.com/phrazzld/connkeeper/internal/dbpool"
)

// Runner abstracts statement execution so service layers can work with the
// retrying Executor or with a test double interchangeably.
type Runner interface {
	Execute(ctx context.Context, query string, params dbpool.Params, opts ...ExecOption) (*dbpool.Result, error)
}
