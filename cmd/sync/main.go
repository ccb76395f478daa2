// File: cmd/sync/main.go
//
// One reconciliation pass for cron environments: polls every stale open
// generation once and prints the summary as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"reklamai-generation/internal/config"
	"reklamai-generation/internal/domain/ports/adapter"
	"reklamai-generation/internal/infra/adapters/kie"
	"reklamai-generation/internal/infra/adapters/storage"
	pg "reklamai-generation/internal/infra/db/postgres"
	"reklamai-generation/internal/infra/logging"
	"reklamai-generation/internal/infra/worker"
	"reklamai-generation/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "upper bound for the whole pass")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, false)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	provider, err := kie.NewClientFromConfig(cfg.KIE, logger)
	if err != nil {
		log.Fatalf("kie client: %v", err)
	}

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
			log.Fatalf("object storage: %v", err)
		}
		objects = s3s
	}

	generations := pg.NewGenerationRepo(pool)
	assets := pg.NewAssetRepo(pool)
	settlement := usecase.NewSettlementUseCase(generations, assets, pg.NewCreditRepo(pool), pg.NewProviderTaskRepo(pool),
		pg.NewTxManager(pool), provider, objects, logger)
	status := usecase.NewStatusUseCase(generations, pg.NewModelRepo(pool), assets, provider, settlement, objects, nil,
		usecase.StatusConfig{SignedURLTTL: cfg.Storage.SignedURLTTL}, logger)

	workers := worker.NewPool(cfg.Sync.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()

	sum, err := usecase.NewSyncUseCase(generations, status, workers, cfg.Sync.StaleAfter, cfg.Sync.Batch, logger).Run(ctx)
	if err != nil {
		log.Fatalf("sync: %v", err)
	}
	out := struct {
		*usecase.SyncSummary
		DurationMS int64 `json:"durationMs"`
	}{sum, sum.Duration.Milliseconds()}
	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		log.Fatalf("encode summary: %v", err)
	}
}
