package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"brain2-extractor/infrastructure/config"
	"brain2-extractor/infrastructure/di"
	"brain2-extractor/interfaces/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var opener cli.StreamOpener
	if generator := di.ProvideGenerator(cfg, logger); generator != nil {
		opener = generator
	}

	return cli.NewRootCommand(cfg, opener, logger).ExecuteContext(ctx)
}
