package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and hands the
// transaction to repositories through tx. Repositories must also accept NoTX
// and then run on the pool.
//
// Multi-step membership mutations (renewal delete+insert+flag reset, expiry
// delete+flag clear) go through WithTx so no reader sees the halfway state.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
