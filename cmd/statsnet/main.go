// Package main is the entry point for the statsnet binary.
package main

import (
	"os"

	"github.com/nikiz24/statsnet/cmd/statsnet/cmd"
)

// Build-time variables set via ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
