package eth

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/scanpay-lab/backend/internal/domain/blockchain/types"
)

// EthWatcher checks the receipt of dispatched transactions.
type EthWatcher struct {
	client EthClient
}

func NewEthWatcher(client EthClient) *EthWatcher {
	return &EthWatcher{client: client}
}

func (w *EthWatcher) Status(ctx context.Context, txHash string) (types.TxStatus, error) {
	receipt, err := w.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return types.TxStatusPending, nil
		}

		return types.TxStatusPending, err
	}

	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return types.TxStatusSuccess, nil
	}

	return types.TxStatusFailure, nil
}
