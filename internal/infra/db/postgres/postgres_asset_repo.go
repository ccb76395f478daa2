package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/repository"
)

var _ repository.AssetRepository = (*assetRepo)(nil)

type assetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) *assetRepo {
	return &assetRepo{pool: pool}
}

// Save inserts a. A second output for the same generation updates the stored
// path instead of adding a row.
func (r *assetRepo) Save(ctx context.Context, tx repository.Tx, a *model.Asset) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(a.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO assets (id, generation_id, owner_id, kind, asset_type, storage_bucket, storage_path, provider_url, meta, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::jsonb,$10)
ON CONFLICT (generation_id, kind) WHERE kind = 'output' DO UPDATE SET
  storage_bucket = EXCLUDED.storage_bucket,
  storage_path   = EXCLUDED.storage_path,
  provider_url   = EXCLUDED.provider_url,
  meta           = EXCLUDED.meta;`
	_, err = execSQL(ctx, r.pool, tx, q,
		a.ID, a.GenerationID, a.OwnerID, string(a.Kind), string(a.Type),
		a.StorageBucket, a.StoragePath, a.ProviderURL, meta, a.CreatedAt,
	)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *assetRepo) FindOutput(ctx context.Context, tx repository.Tx, generationID string) (*model.Asset, error) {
	const q = `
SELECT id, generation_id, owner_id, kind, asset_type, storage_bucket, storage_path, provider_url, COALESCE(meta, '{}'::jsonb), created_at
  FROM assets
 WHERE generation_id=$1 AND kind='output'
 ORDER BY created_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, generationID)
	if err != nil {
		return nil, err
	}

	var (
		a         model.Asset
		kind, typ string
		metaBytes []byte
	)
	if err := row.Scan(&a.ID, &a.GenerationID, &a.OwnerID, &kind, &typ,
		&a.StorageBucket, &a.StoragePath, &a.ProviderURL, &metaBytes, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	a.Kind = model.AssetKind(kind)
	a.Type = model.AssetType(typ)
	_ = json.Unmarshal(metaBytes, &a.Meta)
	return &a, nil
}
