package main

import (
	"fmt"
	"os"

	"n8n-ingest/backend/internal/cli"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
