package blockchain

import (
	"context"

	"github.com/scanpay-lab/backend/internal/domain/blockchain/types"
)

// This is an interface for all dispatcher that sends transactions to different blockchain.
type Dispatcher interface {
	Dispatch(ctx context.Context, request *types.DispatchedTxRequest) *types.DispatchedTxResult
}

type Watcher interface {
	// Status reports whether a dispatched tx is still pending, succeeded or
	// reverted.
	Status(ctx context.Context, txHash string) (types.TxStatus, error)
}
