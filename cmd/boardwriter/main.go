package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"BoardWriter/internal/cmd"
	xerrors "BoardWriter/internal/errors"
	"BoardWriter/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		logger := logging.NewWithWriter(os.Stderr, "error", "text")
		logger.Error("boardwriter stopped", "code", xerrors.CodeOf(err), "error", err)
		stop()
		os.Exit(1)
	}
}
