package repository

import "context"

// CreditRepository invokes the ledger RPCs. Both calls are idempotent by contract
// on (owner, generation); the arithmetic lives inside the database.
type CreditRepository interface {
	Finalize(ctx context.Context, tx Tx, ownerID, generationID string, finalAmount float64, meta map[string]any) error
	Refund(ctx context.Context, tx Tx, ownerID, generationID string, meta map[string]any) error
}
