// ABOUTME: CLI entrypoint for snapboard: serve the board, drive it from a TUI or MCP, manage the gallery and export.
// ABOUTME: fang wraps the cobra tree for styled help, completions and signal-aware contexts.
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
)

var version = "dev"

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
