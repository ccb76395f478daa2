package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/repository"
)

var _ repository.ProviderTaskRepository = (*providerTaskRepo)(nil)

type providerTaskRepo struct {
	pool *pgxpool.Pool
}

func NewProviderTaskRepo(pool *pgxpool.Pool) *providerTaskRepo {
	return &providerTaskRepo{pool: pool}
}

// Upsert records the latest provider observation for a task.
func (r *providerTaskRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.ProviderTask) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	raw := []byte(t.Raw)
	if len(raw) == 0 {
		raw = []byte("null")
	}
	const q = `
INSERT INTO provider_tasks (generation_id, provider, task_id, status, raw, updated_at)
VALUES ($1, 'kie', $2, $3, $4::jsonb, $5)
ON CONFLICT (task_id) DO UPDATE SET
  status     = EXCLUDED.status,
  raw        = EXCLUDED.raw,
  updated_at = EXCLUDED.updated_at;`
	if _, err := execSQL(ctx, r.pool, tx, q, t.GenerationID, t.TaskID, string(t.Status), raw, t.UpdatedAt); err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
