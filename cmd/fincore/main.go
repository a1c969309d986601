package main

import (
	"os"

	"github.com/wonny/fincore/cmd/fincore/commands"
)

// main is the single CLI entry point: go run ./cmd/fincore [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
