// Command sitebook records site attendance and expenses, derives payroll, and serves it over HTTP, MCP, and websocket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
)

// version is stamped at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, newRootCommand(), fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}
