// Package main provides the entry point for the lumina CLI.
package main

import (
	"os"

	"github.com/lumina-index/lumina/cmd/lumina/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
