package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docchat-backend/internal/bootstrap"
	"docchat-backend/internal/shared/config"
	"docchat-backend/internal/shared/server"
	"docchat-backend/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	slog.SetDefault(telemetry.Logger())
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Migrate: true})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s", addr)
	serveErr := server.Serve(ctx, server.New(addr, app.Router), shutdownTimeout)

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(drainCtx); err != nil {
		log.Printf("extraction drain: %v", err)
	}
	if serveErr != nil {
		log.Fatalf("server error: %v", serveErr)
	}
}
