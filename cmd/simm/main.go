package main

import (
	"os"

	"github.com/wonny/atlas/cmd/simm/commands"
)

// main is the entry point for the Atlas CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/simm [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
