package mocks

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
)

// EthClient is a testify mock of eth.EthClient.
type EthClient struct {
	mock.Mock
}

// result converts the first return value, which may be an untyped nil.
func result[T any](args mock.Arguments) (T, error) {
	var zero T
	if v := args.Get(0); v != nil {
		zero = v.(T)
	}

	return zero, args.Error(1)
}

func (c *EthClient) Start(context.Context) {}

func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	return result[uint64](c.Called(ctx))
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	return result[*ethtypes.Receipt](c.Called(ctx, hash))
}

func (c *EthClient) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return c.Called(ctx, tx).Error(0)
}

func (c *EthClient) BalanceAt(ctx context.Context, from common.Address, block *big.Int) (*big.Int, error) {
	return result[*big.Int](c.Called(ctx, from, block))
}

func (c *EthClient) NonceAt(ctx context.Context, account common.Address, block *big.Int) (uint64, error) {
	return result[uint64](c.Called(ctx, account, block))
}

func (c *EthClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return result[*ethtypes.Header](c.Called(ctx, number))
}

func (c *EthClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return result[[]ethtypes.Log](c.Called(ctx, query))
}

func (c *EthClient) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	return result[[]byte](c.Called(ctx, msg, block))
}

func (c *EthClient) GetSignedTransferTokenTx(
	ctx context.Context, token common.Address, key *ecdsa.PrivateKey, recipient common.Address, amount *big.Int,
) (*ethtypes.Transaction, error) {
	return result[*ethtypes.Transaction](c.Called(ctx, token, key, recipient, amount))
}

func (c *EthClient) ERC20BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	return result[*big.Int](c.Called(ctx, token, account))
}
