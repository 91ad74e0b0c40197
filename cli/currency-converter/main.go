package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/malusev998/currency/cli/cmd"
)

func load(ctx context.Context, options cmd.Options) (*cmd.Config, error) {
	config, err := getConfig(options)
	if err != nil {
		return nil, err
	}

	logger := newLogger(os.Stderr, config.Log, options.Debug)
	slog.SetDefault(logger)

	return build(ctx, config, logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := cmd.Execute(ctx, load); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}

	stop()
}
