// Package api serves the operational HTTP endpoints: liveness, readiness
// against the database, pool manager statistics and Prometheus metrics.
// It exposes no business API.
package api
