package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"docchat-backend/internal/auth"
	"docchat-backend/internal/documents"
	"docchat-backend/internal/extract"
	"docchat-backend/internal/extraction"
	"docchat-backend/internal/queue"
	"docchat-backend/internal/services/health"
	sharedauth "docchat-backend/internal/shared/auth"
	"docchat-backend/internal/shared/config"
	"docchat-backend/internal/shared/metrics"
	"docchat-backend/internal/shared/server/middleware"
	"docchat-backend/internal/shared/storage/db"
	"docchat-backend/internal/shared/storage/object"
	gcsstore "docchat-backend/internal/shared/storage/object/gcs"
	localstore "docchat-backend/internal/shared/storage/object/local"
	miniostore "docchat-backend/internal/shared/storage/object/minio"
	s3store "docchat-backend/internal/shared/storage/object/s3"
	"docchat-backend/internal/users"
)

// Rate limit rules. The polling group covers the dashboard's list refresh.
var rateRules = map[string]middleware.RateLimitRule{
	middleware.GroupPolling: {Rate: 5, Burst: 10},
	middleware.GroupDefault: {Rate: 2, Burst: 20},
}

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.Store

	DocumentsRepo documents.Repo
	UsersRepo     users.Repo
	Runner        *extraction.Runner
	Dispatcher    documents.Dispatcher
	// Pool is set when extraction runs in-process.
	Pool *extraction.Pool

	DocumentsService *documents.Service
	UsersService     *users.Service

	closers []io.Closer
}

// Options tweaks Build for the different binaries.
type Options struct {
	// DBOptions overrides the connection pool settings.
	DBOptions *db.Options
	// SkipRouter builds dependencies only, for the worker and CLI.
	SkipRouter bool
	// Migrate runs pending migrations after connecting.
	Migrate bool
}

// Build wires configuration into repositories, storage, extraction and routes.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	sqlDB, err := buildDB(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: sqlDB}
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store
	if c, ok := store.(io.Closer); ok {
		app.closers = append(app.closers, c)
	}

	if sqlDB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: sqlDB}
		app.UsersRepo = &users.PGRepo{DB: sqlDB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}
	app.UsersService = users.NewService(app.UsersRepo)

	app.Runner = &extraction.Runner{
		Store:     store,
		Repo:      app.DocumentsRepo,
		Extractor: extract.PDFExtractor{},
		Timeout:   cfg.ExtractionTimeout,
	}

	if err := app.buildDispatcher(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.DocumentsService = &documents.Service{
		Store:          store,
		Repo:           app.DocumentsRepo,
		Users:          app.UsersService,
		Dispatcher:     app.Dispatcher,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	if !opts.SkipRouter {
		router, err := app.buildRouter(ctx)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Router = router
	}

	log.Printf("bootstrap: env=%s store=%s queue=%s database=%t", cfg.Env, cfg.ObjectStoreType, cfg.QueueBackend, sqlDB != nil)
	return app, nil
}

// Shutdown drains in-process extraction and then releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.Pool != nil {
		err = a.Pool.Shutdown(ctx)
	}
	a.Close()
	return err
}

// Close releases connections held by the app.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("bootstrap: close: %v", err)
		}
	}
	a.closers = nil
}

func buildDB(ctx context.Context, cfg config.Config, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	dbOpts := db.OptionsFromEnv(db.DefaultServerOptions())
	if opts.DBOptions != nil {
		dbOpts = *opts.DBOptions
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, dbOpts)
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if opts.Migrate {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		store, err := miniostore.New(miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.AWSRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "gcs":
		return gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentials)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildDispatcher(ctx context.Context) error {
	cfg := a.Config
	switch cfg.QueueBackend {
	case "asynq":
		client := queue.NewAsynqClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		a.closers = append(a.closers, client)
		a.Dispatcher = &extraction.QueueDispatcher{Client: client}
	case "sqs":
		client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return err
		}
		a.Dispatcher = &extraction.QueueDispatcher{Client: client}
	default:
		a.Pool = extraction.NewPool(a.Runner, cfg.ExtractionConcurrency)
		a.Dispatcher = a.Pool
	}
	return nil
}

func (a *App) buildRouter(ctx context.Context) (*gin.Engine, error) {
	cfg := a.Config
	verifier := sharedauth.ChainVerifier{sharedauth.HMACVerifier{}}
	if cfg.JWKSURL != "" {
		jwks, err := sharedauth.NewJWKSVerifier(ctx, cfg.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("jwks: %w", err)
		}
		verifier = append(verifier, auth.ExternalVerifier{Verifier: jwks, Accounts: a.UsersService, Provider: "jwks"})
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(verifier, "/api/auth/", "/api/health", "/metrics"),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    rateRules,
			GroupFor: middleware.PollingRoutes("/api/documents", "/api/documents/:id"),
		}),
	)

	r.GET("/metrics", metrics.Handler())

	oauth := auth.NewService(a.UsersService, cfg.UIRedirectURL,
		auth.Google(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL),
		auth.GitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL),
	)

	api := r.Group("/api")
	health.NewService(a.DB).RegisterRoutes(api)
	users.NewHandler(a.UsersService).RegisterRoutes(api)
	oauth.RegisterRoutes(api)
	documents.NewHandler(a.DocumentsService).RegisterRoutes(api)
	return r, nil
}
