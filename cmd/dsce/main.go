package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openfroyo/dsce/cmd/dsce/commands"
	"github.com/openfroyo/dsce/pkg/telemetry"
)

// Version is set via ldflags during release builds.
var Version = "dev"

func main() {
	logger := telemetry.FromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received interrupt signal, shutting down")
		cancel()
	}()

	ctx = logger.WithContext(ctx)

	if err := commands.Execute(ctx, Version); err != nil {
		logger.Error(err.Error())
		os.Exit(commands.ExitCodeFor(err))
	}
}
