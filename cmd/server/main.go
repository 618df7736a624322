// Package main implements the connkeeper command: an operational HTTP server
// for a managed database pool plus one-shot ping and query probes.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
