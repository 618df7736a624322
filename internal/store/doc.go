// Package store executes statements and transactions against the shared pool
// owned by a dbpool.Manager.
//
// The Executor retries connection timeouts and resets with exponential
// backoff, invalidating the shared pool before each retry; every other error
// is surfaced on first occurrence. WithTransaction wraps a unit of work in
// begin/commit/rollback and guarantees exactly one of commit or rollback.
package store
