package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iProgramme/AI-shouban/internal/cli"
	"github.com/iProgramme/AI-shouban/internal/inject"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/samber/do"
)

func main() {
	logger := log.New(os.Stderr, log.ParseLevel(os.Getenv("LOG_LEVEL")))
	if err := run(logger); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(log.NewContext(context.Background(), logger), os.Interrupt, syscall.SIGTERM)
	defer stop()

	injector := inject.Setup(ctx)
	defer func() { _ = injector.Shutdown() }()

	menu, err := do.Invoke[*cli.Menu](injector)
	if err != nil {
		return err
	}
	return menu.Run(ctx)
}
