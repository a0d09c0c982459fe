package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"wa-bot/internal/app"
	"wa-bot/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- Clients and handler ----
	a, err := app.New(ctx, cfg, app.DefaultAWS)
	if err != nil {
		slog.Error("failed to build app", "err", err)
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}
