package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Repositories accept it as `qx any`
// and must gracefully fall back to a non-transactional path when it is nil.
// The concrete type is infra-defined (pgx.Tx for Postgres).
type Tx interface{}

var NoTX interface{}

// TransactionManager runs a function inside a database transaction, handing
// the tx handle to repository calls via `qx`. It exists so use-case
// interfaces never leak storage transaction types. The pipeline needs it in
// exactly one place: creating a conversation together with its seed and
// placeholder messages, so a half-created conversation is never visible.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
