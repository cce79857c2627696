package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/txgraph/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New()
	ctx = logger.WithContext(ctx, log)

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("txgraph failed")
		stop()
		os.Exit(1)
	}
}
