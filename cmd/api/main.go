package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/mediadrive/internal/auth"
	"github.com/abduss/mediadrive/internal/config"
	"github.com/abduss/mediadrive/internal/gallery"
	"github.com/abduss/mediadrive/internal/logger"
	"github.com/abduss/mediadrive/internal/metrics"
	"github.com/abduss/mediadrive/internal/server"
	"github.com/abduss/mediadrive/internal/storage"
	"github.com/abduss/mediadrive/internal/workspace"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	for _, name := range cfg.Missing() {
		log.Warn("missing configuration", zap.String("setting", name))
	}

	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objects, storageCheck := openStorage(ctx, cfg, log)

	provider, procedures, dbPool := openAuth(ctx, cfg, log)
	if dbPool != nil {
		defer dbPool.Close()
	}

	authGateway := auth.NewGateway(provider, procedures, log.Named("auth"))
	if cfg.Storage.PurgeOnAccountDeletion {
		authGateway.OnAccountDeleted(func(ctx context.Context, userID string) {
			n, err := gallery.Purge(ctx, objects, userID)
			if err != nil {
				log.Warn("purge account media", zap.String("user_id", userID), zap.Int("deleted", n), zap.Error(err))
				return
			}
			log.Info("purged account media", zap.String("user_id", userID), zap.Int("deleted", n))
		})
	}

	workspaces, err := workspace.NewRegistry(cfg.Session, objects, log.Named("workspace"))
	if err != nil {
		log.Fatal("create workspace registry", zap.Error(err))
	}
	defer func() { _ = workspaces.Close() }()

	deps := server.Dependencies{
		Config:       cfg,
		Logger:       log,
		Storage:      objects,
		StorageCheck: storageCheck,
		Auth:         authGateway,
		Workspaces:   workspaces,
	}
	if dbPool != nil {
		deps.DB = dbPool
	}
	router := server.NewRouter(deps)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("mediadrive API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("storage", string(objects.Strategy())),
			zap.String("auth", cfg.Auth.Provider))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// openStorage picks the configured strategy. An unreachable or incomplete
// object store degrades to a gateway that fails every operation.
func openStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.Gateway, func(context.Context) error) {
	if !cfg.StorageReady() {
		log.Warn("object storage is not configured; media operations will fail")
		return storage.Unconfigured{}, nil
	}

	switch cfg.Storage.Strategy {
	case config.StorageSigned:
		client, err := storage.NewS3Client(ctx, cfg.Storage)
		if err != nil {
			log.Error("create s3 client", zap.Error(err))
			return storage.Unconfigured{}, nil
		}
		check := func(ctx context.Context) error {
			return storage.CheckBucket(ctx, client, cfg.Storage.Bucket)
		}
		if err := check(ctx); err != nil {
			log.Warn("check bucket", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		}
		return storage.NewSignedGateway(client, cfg.Storage, &http.Client{Timeout: cfg.Server.WriteTimeout}), check

	default:
		client, err := storage.NewMinIOClient(cfg.Storage)
		if err != nil {
			log.Error("create minio client", zap.Error(err))
			return storage.Unconfigured{}, nil
		}
		if err := storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			log.Warn("ensure bucket", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		}
		check := func(ctx context.Context) error {
			_, err := client.BucketExists(ctx, cfg.Storage.Bucket)
			return err
		}
		return storage.NewMinIOGateway(client, cfg.Storage), check
	}
}

// openAuth builds the identity provider and the privileged procedures. The
// returned pool, when non-nil, must be closed by the caller.
func openAuth(ctx context.Context, cfg config.Config, log *zap.Logger) (auth.Provider, auth.Procedures, *pgxpool.Pool) {
	if cfg.Auth.Provider == config.AuthProviderLocal {
		pool, err := storage.NewPostgresPool(ctx, cfg.Postgres.DSN())
		if err != nil {
			log.Fatal("connect postgres", zap.Error(err))
		}
		local := auth.NewLocal(auth.NewRepository(pool), cfg.Auth)
		return local, auth.NewPgxProcedures(pool), pool
	}

	gotrue := auth.NewGoTrue(cfg.Auth, &http.Client{Timeout: cfg.Auth.HTTPTimeout})
	if cfg.Auth.RPCDSN == "" {
		return gotrue, auth.NewRESTProcedures(gotrue), nil
	}

	pool, err := storage.NewPostgresPool(ctx, cfg.Auth.RPCDSN)
	if err != nil {
		log.Warn("connect procedure database; falling back to REST", zap.Error(err))
		return gotrue, auth.NewRESTProcedures(gotrue), nil
	}
	return gotrue, auth.NewPgxProcedures(pool), pool
}
