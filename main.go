package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stupside/veil/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Root().Run(ctx, os.Args)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		slog.Info("browser session ended", "cause", context.Cause(ctx))
	default:
		slog.Error("veil failed", "error", err)
		os.Exit(1)
	}
}
