package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// infra-defined tx handle (pgx.Tx for Postgres) to fn. Repositories accept that
// handle as their tx argument and fall back to the pool when it is nil.
// fn returning an error rolls the transaction back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
