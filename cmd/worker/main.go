package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"docchat-backend/internal/bootstrap"
	"docchat-backend/internal/shared/config"
	"docchat-backend/internal/shared/metrics"
	"docchat-backend/internal/shared/server"
	"docchat-backend/internal/shared/storage/db"
	"docchat-backend/internal/shared/telemetry"
	"docchat-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 300
	defaultShutdownTimeoutSec = 30
	defaultMetricsPort        = "9090"
)

func main() {
	slog.SetDefault(telemetry.Logger())
	cfg := config.Load()
	if cfg.QueueBackend == "inline" {
		log.Fatal("QUEUE_BACKEND must be asynq or sqs for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second
	dbOpts := db.OptionsFromEnv(db.DefaultWorkerOptions(cfg.ExtractionConcurrency))

	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{DBOptions: &dbOpts, SkipRouter: true})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler())
	metricsSrv := server.New(server.Addr(envString("WORKER_METRICS_PORT", defaultMetricsPort)), mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(gctx, metricsSrv, shutdownTimeout)
	})
	g.Go(func() error {
		switch cfg.QueueBackend {
		case "asynq":
			return runAsynq(gctx, cfg, app, shutdownTimeout)
		default:
			return runSQS(gctx, cfg, app)
		}
	})

	log.Printf("worker started queue=%s concurrency=%d", cfg.QueueBackend, cfg.ExtractionConcurrency)
	if err := g.Wait(); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
	log.Printf("worker stopped")
}

func runAsynq(ctx context.Context, cfg config.Config, app *bootstrap.App, shutdownTimeout time.Duration) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency:     cfg.ExtractionConcurrency,
		ShutdownTimeout: shutdownTimeout,
	})
	if err := srv.Start(workerproc.NewAsynqMux(app.Runner)); err != nil {
		return err
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func runSQS(ctx context.Context, cfg config.Config, app *bootstrap.App) error {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return err
	}
	consumer := &workerproc.SQSConsumer{
		Client:            sqs.NewFromConfig(awsCfg),
		QueueURL:          cfg.SQSQueueURL,
		Runner:            app.Runner,
		Concurrency:       cfg.ExtractionConcurrency,
		VisibilitySeconds: int32(envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)),
	}
	return consumer.Run(ctx)
}

func envString(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
