package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pienkuu/pienkuu/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], cli.Dependencies{})
	stop()
	os.Exit(code)
}
