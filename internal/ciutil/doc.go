// Package ciutil provides utilities for CI and environment-specific functionality.
//
// It centralizes CI detection, the CI metadata attached to log records, and
// discovery of the database used by integration tests, so every package reads
// these environment variables the same way.
package ciutil
