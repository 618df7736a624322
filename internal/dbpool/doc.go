// Package dbpool owns the lifecycle of the process-wide database connection pool.
//
// A Manager creates its pool lazily on first demand, shares one in-flight connect
// attempt between every caller that arrives while it is pending, and discards the
// pool whenever it reports itself unhealthy or a pool-level error is raised, so the
// next caller reconnects. The Manager never retries a failed connect; retry policy
// belongs to the callers (see the store package).
//
// Drivers plug in through the Connector, Pool and Tx interfaces defined here, which
// keeps the Manager independent of pgx or database/sql specifics.
package dbpool
