package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jupiterclapton/cenackle/services/interaction-service/internal/cli"
	"github.com/jupiterclapton/cenackle/services/interaction-service/pkg/logger"
)

func main() {
	logger.InitWriter(os.Getenv("APP_ENV"), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
