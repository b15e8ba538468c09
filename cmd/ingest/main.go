package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yungbote/medscribe-backend/internal/app"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ing, err := app.NewIngest(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer ing.Close()

	if err := ing.Run(ctx); err != nil {
		ing.Log.Error("Ingestion failed", "error", err)
		ing.Close()
		os.Exit(1)
	}
	ing.Log.Info("Ingestion complete")
}
