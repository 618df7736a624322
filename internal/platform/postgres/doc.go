// Package postgres connects the pool manager to PostgreSQL through pgxpool.
//
// Connector turns a config.DatabaseConfig into pgxpool settings, verifies
// the new pool with a ping and wraps it as a dbpool.Pool. Statements use
// pgx named arguments (@name) and results are materialized as maps keyed by
// column name. MapError translates constraint violations into the store
// package's sentinel errors.
package postgres
