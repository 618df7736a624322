package store

import (
	"errors"
	"fmt"
)

// Common store errors.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when a statement violates a constraint.
	// Check the wrapped error for the constraint details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is matched by every *TransactionError.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrRetriesExhausted is matched by a *TransientNetworkError raised on
	// the last permitted attempt, and returned on its own if a query
	// finished its attempts without capturing any error.
	ErrRetriesExhausted = errors.New("query failed after retries")
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// TransientNetworkError is a connection timeout or connection reset observed
// while executing a statement. It is the only class the Executor retries.
type TransientNetworkError struct {
	// Attempt is the 1-based attempt on which the error was observed.
	Attempt int
	// Exhausted is set when no attempts remained after this one.
	Exhausted bool
	Err       error
}

// Error implements the error interface.
func (e *TransientNetworkError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("transient database error on final attempt %d: %v", e.Attempt, e.Err)
	}
	return fmt.Sprintf("transient database error on attempt %d: %v", e.Attempt, e.Err)
}

// Unwrap returns the driver error.
func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// Is reports ErrRetriesExhausted for errors raised on the final attempt.
func (e *TransientNetworkError) Is(target error) bool {
	return target == ErrRetriesExhausted && e.Exhausted
}

// QueryError is any non-transient failure of a statement: syntax errors,
// constraint violations, permission errors and so on. It is never retried.
type QueryError struct {
	Err error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// TxOp names the transaction step that failed.
type TxOp string

// Transaction steps.
const (
	TxOpBegin    TxOp = "begin"
	TxOpCommit   TxOp = "commit"
	TxOpRollback TxOp = "rollback"
)

// TransactionError reports a failed begin, commit or rollback.
//
// For TxOpRollback, Err is the unit of work's original error and
// RollbackErr the failure raised while rolling back; Unwrap yields the
// original so callers keep matching on their own errors.
type TransactionError struct {
	Op          TxOp
	Err         error
	RollbackErr error
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	switch e.Op {
	case TxOpRollback:
		return fmt.Sprintf("error rolling back transaction: %v (original error: %v)", e.RollbackErr, e.Err)
	default:
		return fmt.Sprintf("failed to %s transaction: %v", e.Op, e.Err)
	}
}

// Unwrap returns the original error.
func (e *TransactionError) Unwrap() error {
	return e.Err
}

// Is matches ErrTransactionFailed.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransactionFailed
}
