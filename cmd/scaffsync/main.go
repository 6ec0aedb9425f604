// Package main provides the entry point for the scaffsync CLI.
package main

import (
	"os"

	"github.com/scaffsync/scaffsync/cmd/scaffsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
