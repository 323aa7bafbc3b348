package types

import (
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

type DispatchError int

const (
	ErrNil DispatchError = iota // no error
	ErrGeneric
	ErrNotEnoughBalance
	ErrSubmitTx
)

func (e DispatchError) String() string {
	switch e {
	case ErrNil:
		return "nil"
	case ErrNotEnoughBalance:
		return "Not enough gas balance"
	case ErrSubmitTx:
		return "Cannot submit tx"
	default:
		return "Generic error"
	}
}

type TxStatus int

const (
	TxStatusPending TxStatus = iota
	TxStatusSuccess
	TxStatusFailure
)

type DispatchedTxRequest struct {
	Chain string
	From  common.Address
	Tx    *ethtypes.Transaction
}

type DispatchedTxResult struct {
	Success bool
	Err     DispatchError
	Chain   string
	TxHash  string
}

func NewDispatchTxError(request *DispatchedTxRequest, err DispatchError) *DispatchedTxResult {
	return &DispatchedTxResult{
		Chain:   request.Chain,
		TxHash:  request.Tx.Hash().Hex(),
		Success: false,
		Err:     err,
	}
}

func NewDispatchTxSuccess(request *DispatchedTxRequest) *DispatchedTxResult {
	return &DispatchedTxResult{
		Chain:   request.Chain,
		TxHash:  request.Tx.Hash().Hex(),
		Success: true,
		Err:     ErrNil,
	}
}
