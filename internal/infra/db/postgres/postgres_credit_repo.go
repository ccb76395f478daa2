package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"reklamai-generation/internal/domain"
	"reklamai-generation/internal/domain/ports/repository"
)

var _ repository.CreditRepository = (*creditRepo)(nil)

type creditRepo struct {
	pool *pgxpool.Pool
}

func NewCreditRepo(pool *pgxpool.Pool) *creditRepo {
	return &creditRepo{pool: pool}
}

// Finalize calls rpc_credit_finalize. The returned error wraps ErrSettlementFailed
// and carries the database message so callers can surface it verbatim.
func (r *creditRepo) Finalize(ctx context.Context, tx repository.Tx, ownerID, generationID string, finalAmount float64, meta map[string]any) error {
	m, err := marshalMeta(meta)
	if err != nil {
		return err
	}
	const q = `SELECT rpc_credit_finalize($1::uuid, $2::uuid, $3::numeric, $4::jsonb);`
	if _, err := execSQL(ctx, r.pool, tx, q, ownerID, generationID, finalAmount, m); err != nil {
		return fmt.Errorf("%w: finalize: %s", domain.ErrSettlementFailed, err.Error())
	}
	return nil
}

func (r *creditRepo) Refund(ctx context.Context, tx repository.Tx, ownerID, generationID string, meta map[string]any) error {
	m, err := marshalMeta(meta)
	if err != nil {
		return err
	}
	const q = `SELECT rpc_credit_refund($1::uuid, $2::uuid, $3::jsonb);`
	if _, err := execSQL(ctx, r.pool, tx, q, ownerID, generationID, m); err != nil {
		return fmt.Errorf("%w: refund: %s", domain.ErrSettlementFailed, err.Error())
	}
	return nil
}

func marshalMeta(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, domain.ErrInvalidArgument
	}
	return b, nil
}
