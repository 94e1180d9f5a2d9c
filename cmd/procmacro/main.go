// Package main provides the procmacro CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/procmacro/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
