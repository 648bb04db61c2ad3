// cmd/acta/main.go
//
// Entry point for the acta CLI: run a scenario for one seed, run a batch of
// seeds concurrently, validate a scenario, or print its JSON Schema.

package main

import (
	"fmt"
	"os"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
