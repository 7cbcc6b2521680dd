package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/runnerr0/margin/internal/cli"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cli.Run(ctx, version); err != nil {
		os.Exit(1)
	}
}
