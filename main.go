package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ekaya-inc/mongofilm/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx, Version)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
