// Package main is the entry point for the memmux application.
package main

import (
	"os"

	"github.com/jmylchreest/memmux/cmd/memmux/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
