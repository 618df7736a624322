// Package sqldb adapts database/sql to the pool manager.
//
// Any registered database/sql driver can back a Connector; NewSQLiteConnector
// wires the pure-Go modernc.org/sqlite driver for embedded use and tests.
// Named parameters are passed as sql.NamedArg values, so placeholders follow
// the driver's syntax (":name", "@name" or "$name" for SQLite).
package sqldb
