// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"reklamai-generation/internal/config"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/domain/ports/repository"
	"reklamai-generation/internal/infra/adapters/kie"
	"reklamai-generation/internal/infra/adapters/storage"
	"reklamai-generation/internal/infra/api"
	"reklamai-generation/internal/infra/api/apiv1"
	pg "reklamai-generation/internal/infra/db/postgres"
	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/infra/metrics"
	red "reklamai-generation/internal/infra/redis"
	"reklamai-generation/internal/infra/sched"
	"reklamai-generation/internal/infra/worker"
	"reklamai-generation/internal/usecase"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	var models repository.ModelRepository = pg.NewModelRepo(pool)
	generations := pg.NewGenerationRepo(pool)
	assets := pg.NewAssetRepo(pool)
	credits := pg.NewCreditRepo(pool)
	tasks := pg.NewProviderTaskRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional: lock, rate limit, model cache) ----
	var (
		locker  adapter.Locker
		limiter adapter.RateLimiter
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		locker = red.NewLocker(rc, 1)
		limiter = red.NewRateLimiter(rc)
		models = pg.NewModelRepoCacheDecorator(models, rc, cfg.Redis.TTL, logger)
		logger.Info().Msg("redis enabled: poll lock, rate limit, model cache")
	}

	// ---- Provider ----
	provider, err := kie.NewClientFromConfig(cfg.KIE, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("kie client")
	}
	logger.Info().Str("base_url", cfg.KIE.BaseURL).Str("api_key", logging.Redact(cfg.KIE.APIKey, false)).Msg("kie client ready")

	// ---- Object storage (optional) ----
	var objects adapter.ObjectStorage
	if cfg.StorageEnabled() {
		s3s, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("object storage")
		}
		objects = s3s
		logger.Info().Str("bucket", cfg.Storage.Bucket).Msg("output mirroring enabled")
	}

	// ---- Use cases ----
	settlementUC := usecase.NewSettlementUseCase(generations, assets, credits, tasks, tm, provider, objects, logger)
	statusUC := usecase.NewStatusUseCase(generations, models, assets, provider, settlementUC, objects, locker,
		usecase.StatusConfig{LockTTL: cfg.Redis.LockTTL, SignedURLTTL: cfg.Storage.SignedURLTTL}, logger)
	downloadUC := usecase.NewDownloadUseCase(generations, models, assets, provider, provider, objects, cfg.Storage.SignedURLTTL, logger)
	webhookUC := usecase.NewWebhookUseCase(generations, statusUC, logger)

	workers := worker.NewPool(cfg.Sync.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()
	syncUC := usecase.NewSyncUseCase(generations, statusUC, workers, cfg.Sync.StaleAfter, cfg.Sync.Batch, logger)

	// ---- HTTP ----
	router := api.NewRouter(logger, cfg.HTTP.RequestTimeout)
	apiv1.RegisterAPIV1(router, apiv1.NewServer(statusUC, downloadUC, webhookUC, syncUC,
		api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.ServiceRoleKey),
		apiv1.RateLimit{Limiter: limiter, Limit: cfg.RateLimit.StatusPerMinute, Window: time.Minute},
		logger))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(gctx, server, logger) })
	if cfg.Metrics.Port > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		ms := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error { return serve(gctx, ms, logger) })
	}
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})
	g.Go(func() error {
		return sched.NewGenerationReconciler(syncUC, cfg.Sync.Interval, logger).Start(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
