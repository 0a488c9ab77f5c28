// Package main is the entry point for the ucaibot CLI.
package main

import (
	"os"

	"github.com/ucai/ucaibot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
