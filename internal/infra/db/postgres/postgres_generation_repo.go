package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/model"
	"reklamai-generation/internal/domain/ports/repository"
)

var _ repository.GenerationRepository = (*generationRepo)(nil)

type generationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) *generationRepo {
	return &generationRepo{pool: pool}
}

const generationColumns = `id, owner_id, model_id, preset_id, prompt, status, provider_task_id, progress, output_url, error,
       reserved_credits, estimated_credits, created_at, updated_at, completed_at`

func (r *generationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Generation, error) {
	q := `SELECT ` + generationColumns + ` FROM generations WHERE id=$1`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	return r.one(ctx, tx, q+";", id)
}

func (r *generationRepo) FindByIDForOwner(ctx context.Context, tx repository.Tx, id, ownerID string) (*model.Generation, error) {
	q := `SELECT ` + generationColumns + ` FROM generations WHERE id=$1 AND owner_id=$2`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	return r.one(ctx, tx, q+";", id, ownerID)
}

func (r *generationRepo) FindByTaskID(ctx context.Context, tx repository.Tx, taskID string) (*model.Generation, error) {
	const q = `SELECT ` + generationColumns + ` FROM generations WHERE provider_task_id=$1 ORDER BY created_at DESC LIMIT 1;`
	return r.one(ctx, tx, q, taskID)
}

// Advance is the compare-and-set every status write goes through: rows already
// succeeded or failed are never touched, so at most one writer wins the terminal
// transition.
func (r *generationRepo) Advance(ctx context.Context, tx repository.Tx, id string, upd model.GenerationUpdate) (bool, error) {
	var errJSON []byte
	if upd.Error != nil {
		b, err := json.Marshal(upd.Error)
		if err != nil {
			return false, domain.ErrInvalidArgument
		}
		errJSON = b
	}
	const q = `
UPDATE generations SET
  status       = $2,
  progress     = COALESCE($3, progress),
  output_url   = COALESCE($4, output_url),
  error        = COALESCE($5::jsonb, error),
  updated_at   = NOW(),
  completed_at = CASE WHEN $2::text IN ('succeeded','failed') THEN NOW() ELSE completed_at END
WHERE id = $1
  AND status NOT IN ('succeeded','failed');`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(upd.Status), upd.Progress, upd.OutputURL, errJSON)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *generationRepo) ListStale(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Generation, error) {
	if limit <= 0 {
		limit = 200
	}
	const q = `SELECT ` + generationColumns + `
  FROM generations
 WHERE status IN ('queued','processing') AND created_at < $1
 ORDER BY created_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, g)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *generationRepo) one(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.Generation, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	g, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return g, nil
}

func scanGeneration(row pgx.Row) (*model.Generation, error) {
	var (
		g       model.Generation
		status  string
		errJSON []byte
	)
	if err := row.Scan(
		&g.ID, &g.OwnerID, &g.ModelID, &g.PresetID, &g.Prompt, &status, &g.ProviderTaskID,
		&g.Progress, &g.OutputURL, &errJSON, &g.ReservedCredits, &g.EstimatedCredits,
		&g.CreatedAt, &g.UpdatedAt, &g.CompletedAt,
	); err != nil {
		return nil, err
	}
	g.Status = model.GenerationStatus(status)
	if len(errJSON) > 0 && string(errJSON) != "null" {
		var ge model.GenerationError
		if json.Unmarshal(errJSON, &ge) == nil {
			g.Error = &ge
		}
	}
	return &g, nil
}
