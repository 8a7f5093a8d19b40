package adapter

import "context"

// LedgerValidator gates subscription creation on an on-chain payment. It
// fails closed: any error becomes false.
type LedgerValidator interface {
	ValidateTransaction(ctx context.Context, txHash string, requiredAmount int64) bool
}
