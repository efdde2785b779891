// Package main is the entry point for the nexx CLI.
package main

import (
	"os"

	"nexx-gsm/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
