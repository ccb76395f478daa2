package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/repository"
)

var _ repository.ModelRepository = (*modelRepo)(nil)

type modelRepo struct {
	pool *pgxpool.Pool
}

func NewModelRepo(pool *pgxpool.Pool) *modelRepo {
	return &modelRepo{pool: pool}
}

func (r *modelRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Model, error) {
	const q = `SELECT id, key, modality, COALESCE(capabilities, '{}'::jsonb) FROM models WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	var (
		m        model.Model
		modality string
		caps     []byte
	)
	if err := row.Scan(&m.ID, &m.Key, &modality, &caps); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	m.Modality = model.Modality(modality)
	// a malformed capabilities bag only loses the family hint
	_ = json.Unmarshal(caps, &m.Capabilities)
	return &m, nil
}

// Upsert inserts m or refreshes the row with the same key, and sets m.ID.
// Used by the seed command; the service itself only reads the catalog.
func (r *modelRepo) Upsert(ctx context.Context, tx repository.Tx, m *model.Model) error {
	caps, err := json.Marshal(m.Capabilities)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO models (key, modality, capabilities) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (key) DO UPDATE SET modality = EXCLUDED.modality, capabilities = EXCLUDED.capabilities
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, m.Key, string(m.Modality), caps)
	if err != nil {
		return err
	}
	if err := row.Scan(&m.ID); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
