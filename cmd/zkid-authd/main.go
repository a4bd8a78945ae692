// Command zkid-authd serves the zero-knowledge identification protocol.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mintmojito-lite/sovereign-identity-layer/internal/config"
	"github.com/mintmojito-lite/sovereign-identity-layer/internal/logging"
	"github.com/mintmojito-lite/sovereign-identity-layer/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zkid-authd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	logger.Info(ctx, "starting zkid-authd")
	return app.Run(ctx)
}
