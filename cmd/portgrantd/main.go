// Package main is the entry point for the portgrantd binary.
package main

import (
	"os"

	"github.com/portgrant/portgrantd/cmd/portgrantd/cmd"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
