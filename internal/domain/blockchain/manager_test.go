package blockchain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/repository"
	"github.com/scanpay-lab/backend/mocks"
	"github.com/scanpay-lab/backend/pkg/testutil"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPayout(t *testing.T, ctx context.Context) *entity.RewardPayout {
	payout := &entity.RewardPayout{
		Base:      entity.Base{ID: uuid.NewString()},
		Recipient: testutil.User1,
		Amount:    50_000,
		Kind:      entity.RewardPayoutKindClaim,
		Status:    entity.RewardPayoutStatusPending,
	}
	require.NoError(t, repository.NewRewardPayoutRepository().Create(ctx, payout))
	return payout
}

func newTransferTx(nonce uint64) *ethtypes.Transaction {
	return ethtypes.NewTransaction(
		nonce, ethcommon.HexToAddress(testutil.USDCAddress), big.NewInt(0), 60000, big.NewInt(10), nil)
}

func getPayout(t *testing.T, ctx context.Context, id string) *entity.RewardPayout {
	payout, err := repository.NewRewardPayoutRepository().GetByID(ctx, id)
	require.NoError(t, err)
	return payout
}

func Test_PayoutManager_DispatchAndConfirm(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)
	tx := newTransferTx(0)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, ethcommon.HexToAddress(testutil.USDCAddress),
		mock.Anything, ethcommon.HexToAddress(testutil.User1), big.NewInt(50_000)).Return(tx, nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, tx).Return(nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.Process(ctx)

	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusDispatched, result.Status)
	require.Equal(t, tx.Hash().Hex(), result.TxHash)
	require.Equal(t, 1, result.Attempts)

	// Not mined yet.
	call := client.On("TransactionReceipt", mock.Anything, tx.Hash()).Return(nil, ethereum.NotFound)
	manager.Process(ctx)
	require.Equal(t, entity.RewardPayoutStatusDispatched, getPayout(t, ctx, payout.ID).Status)
	call.Unset()

	client.On("TransactionReceipt", mock.Anything, tx.Hash()).
		Return(&ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful}, nil)
	manager.Process(ctx)
	require.Equal(t, entity.RewardPayoutStatusSuccess, getPayout(t, ctx, payout.ID).Status)

	client.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func Test_PayoutManager_Reverted(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)
	tx := newTransferTx(0)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(tx, nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
	client.On("TransactionReceipt", mock.Anything, tx.Hash()).
		Return(&ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed}, nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	// Each round sees the revert, puts the payout back to pending and sends
	// it again, until the attempts are exhausted.
	for i := 0; i < MaxPayoutAttempts; i++ {
		manager.Process(ctx)
	}
	require.Equal(t, entity.RewardPayoutStatusDispatched, getPayout(t, ctx, payout.ID).Status)

	manager.Process(ctx)
	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusFailure, result.Status)
	require.Equal(t, MaxPayoutAttempts, result.Attempts)
}

func Test_PayoutManager_NotEnoughGas(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(newTransferTx(0), nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.Process(ctx)

	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusPending, result.Status)
	require.Empty(t, result.TxHash)
	client.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func Test_PayoutManager_SendFailed(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(newTransferTx(0), nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, mock.Anything).Return(errors.New("nonce too low"))

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.Process(ctx)

	// The node may have taken the tx before failing, so the payout keeps its
	// transfer until the dispatch timeout.
	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusDispatched, result.Status)
	require.Equal(t, newTransferTx(0).Hash().Hex(), result.TxHash)
	client.AssertNumberOfCalls(t, "GetSignedTransferTokenTx", 1)
}

func Test_PayoutManager_AlreadyKnown(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(newTransferTx(0), nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, mock.Anything).Return(errors.New("already known"))

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.Process(ctx)
	require.Equal(t, entity.RewardPayoutStatusDispatched, getPayout(t, ctx, payout.ID).Status)
}

func Test_PayoutManager_NotEnoughToken(t *testing.T) {
	ctx := testutil.MockContext()
	first := newPayout(t, ctx)
	second := newPayout(t, ctx)

	client := &mocks.EthClient{}
	client.On("ERC20BalanceOf", mock.Anything, ethcommon.HexToAddress(testutil.USDCAddress), mock.Anything).
		Return(big.NewInt(60_000), nil)
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(newTransferTx(0), nil).Once()
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.dispatchPendingPayouts(ctx)

	// Only one of two payouts of 50_000 fits into a balance of 60_000.
	statuses := []entity.RewardPayoutStatus{
		getPayout(t, ctx, first.ID).Status,
		getPayout(t, ctx, second.ID).Status,
	}
	require.ElementsMatch(t, []entity.RewardPayoutStatus{
		entity.RewardPayoutStatusDispatched, entity.RewardPayoutStatusPending,
	}, statuses)
	client.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func Test_PayoutManager_TokenBalanceError(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)

	client := &mocks.EthClient{}
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("rpc down"))

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.dispatchPendingPayouts(ctx)

	require.Equal(t, entity.RewardPayoutStatusPending, getPayout(t, ctx, payout.ID).Status)
	client.AssertNotCalled(t, "GetSignedTransferTokenTx",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func Test_PayoutManager_StoredBeforeSend(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)
	tx := newTransferTx(7)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(tx, nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, tx).Return(nil).Run(func(mock.Arguments) {
		stored := getPayout(t, ctx, payout.ID)
		require.Equal(t, entity.RewardPayoutStatusDispatched, stored.Status)
		require.Equal(t, tx.Hash().Hex(), stored.TxHash)
		require.Equal(t, uint64(7), stored.Nonce)
		require.NotEmpty(t, stored.RawTx)
		require.NotNil(t, stored.DispatchedAt)
	})

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.Process(ctx)
	client.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func Test_PayoutManager_StuckTxIsSentAgain(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)
	tx := newTransferTx(5)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(tx, nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, mock.MatchedBy(func(sent *ethtypes.Transaction) bool {
		return sent.Hash() == tx.Hash()
	})).Return(nil)
	client.On("TransactionReceipt", mock.Anything, tx.Hash()).Return(nil, ethereum.NotFound)
	client.On("BlockNumber", mock.Anything).Return(uint64(100), nil)
	client.On("NonceAt", mock.Anything, mock.Anything, mock.MatchedBy(func(block *big.Int) bool {
		return block.Uint64() == 100-dropConfirmations
	})).Return(uint64(5), nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	start := time.Now()
	manager.now = func() time.Time { return start }
	manager.Process(ctx)

	// Before the timeout the custody nonce is not looked at.
	manager.Process(ctx)
	client.AssertNotCalled(t, "NonceAt", mock.Anything, mock.Anything, mock.Anything)

	later := start.Add(xcontext.Configs(ctx).Payout.DispatchTimeout)
	manager.now = func() time.Time { return later }
	manager.Process(ctx)

	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusDispatched, result.Status)
	require.Equal(t, tx.Hash().Hex(), result.TxHash)
	require.Equal(t, 1, result.Attempts)
	require.WithinDuration(t, later, *result.DispatchedAt, time.Millisecond)
	client.AssertNumberOfCalls(t, "SendTransaction", 2)
	client.AssertNumberOfCalls(t, "GetSignedTransferTokenTx", 1)

	// The timeout starts again from the second broadcast.
	manager.Process(ctx)
	client.AssertNumberOfCalls(t, "SendTransaction", 2)
}

func Test_PayoutManager_DroppedTx(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)
	dropped := newTransferTx(5)
	replacement := newTransferTx(6)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(dropped, nil).Once()
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(replacement, nil).Once()
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
	client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)
	client.On("BlockNumber", mock.Anything).Return(uint64(100), nil)
	// Nonce 5 is used by a tx which is not ours.
	client.On("NonceAt", mock.Anything, mock.Anything, mock.Anything).Return(uint64(6), nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	start := time.Now()
	manager.now = func() time.Time { return start }
	manager.Process(ctx)
	require.Equal(t, dropped.Hash().Hex(), getPayout(t, ctx, payout.ID).TxHash)

	manager.now = func() time.Time { return start.Add(time.Hour) }
	manager.Process(ctx)

	// The payout went back to pending and was paid with a new transfer in
	// the same round.
	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusDispatched, result.Status)
	require.Equal(t, replacement.Hash().Hex(), result.TxHash)
	require.Equal(t, uint64(6), result.Nonce)
	require.Equal(t, 2, result.Attempts)
}

func Test_PayoutManager_DroppedTx_AttemptsExhausted(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)
	require.NoError(t, xcontext.DB(ctx).Model(&entity.RewardPayout{}).
		Where("id=?", payout.ID).Update("attempts", MaxPayoutAttempts-1).Error)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(newTransferTx(5), nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
	client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)
	client.On("BlockNumber", mock.Anything).Return(uint64(5), nil)
	client.On("NonceAt", mock.Anything, mock.Anything, mock.MatchedBy(func(block *big.Int) bool {
		return block.Sign() == 0
	})).Return(uint64(9), nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	start := time.Now()
	manager.now = func() time.Time { return start }
	manager.Process(ctx)

	manager.now = func() time.Time { return start.Add(time.Hour) }
	manager.Process(ctx)

	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusFailure, result.Status)
	require.Equal(t, MaxPayoutAttempts, result.Attempts)
	client.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func Test_PayoutManager_NonceCheckError(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(newTransferTx(5), nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e18), nil)
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)
	client.On("SendTransaction", mock.Anything, mock.Anything).Return(nil)
	client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(nil, ethereum.NotFound)
	client.On("BlockNumber", mock.Anything).Return(uint64(100), nil)
	client.On("NonceAt", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rpc down"))

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	start := time.Now()
	manager.now = func() time.Time { return start }
	manager.Process(ctx)

	manager.now = func() time.Time { return start.Add(time.Hour) }
	manager.Process(ctx)

	// Without the custody nonce nothing is decided.
	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusDispatched, result.Status)
	require.Equal(t, 1, result.Attempts)
	client.AssertNumberOfCalls(t, "SendTransaction", 1)
}

func Test_PayoutManager_ReleaseWhenNothingSent(t *testing.T) {
	ctx := testutil.MockContext()
	payout := newPayout(t, ctx)

	client := &mocks.EthClient{}
	client.On("GetSignedTransferTokenTx", mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).Return(newTransferTx(0), nil)
	client.On("BalanceAt", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("rpc down"))
	client.On("ERC20BalanceOf", mock.Anything, mock.Anything, mock.Anything).Return(big.NewInt(1e12), nil)

	manager, err := NewPayoutManager(ctx, repository.NewRewardPayoutRepository(), client)
	require.NoError(t, err)

	manager.Process(ctx)

	result := getPayout(t, ctx, payout.ID)
	require.Equal(t, entity.RewardPayoutStatusPending, result.Status)
	require.Empty(t, result.TxHash)
	require.Empty(t, result.RawTx)
	require.Nil(t, result.DispatchedAt)
	require.Equal(t, 0, result.Attempts)
	client.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
}

func Test_CustodyAddress(t *testing.T) {
	ctx := testutil.MockContext()

	a, err := CustodyAddress(ctx)
	require.NoError(t, err)
	b, err := CustodyAddress(ctx)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, ethcommon.Address{}, a)
}
