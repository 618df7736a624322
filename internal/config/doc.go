// Package config loads and validates process configuration from environment
// variables (prefixed CONNKEEPER_) and an optional YAML file. Values are read
// once at startup and treated as immutable afterwards.
package config
