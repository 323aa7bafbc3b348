package domain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/scanpay-lab/backend/contract/erc20"
	"github.com/scanpay-lab/backend/internal/domain/blockchain"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/internal/repository"
	"github.com/scanpay-lab/backend/mocks"
	"github.com/scanpay-lab/backend/pkg/errorx"
	"github.com/scanpay-lab/backend/pkg/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRewardDomain(ethClient *mocks.EthClient) (*rewardDomain, *testutil.MockPublisher) {
	publisher := &testutil.MockPublisher{}
	if ethClient == nil {
		ethClient = &mocks.EthClient{}
	}

	d := NewRewardDomain(
		repository.NewRewardRepository(),
		repository.NewRewardPayoutRepository(),
		repository.NewRewardEventRepository(),
		ethClient,
		publisher,
	)

	return d, publisher
}

// fixedRolls makes the draw return the given values in order.
func fixedRolls(rolls ...int) func(int) int {
	i := 0
	return func(int) int {
		r := rolls[i%len(rolls)]
		i++
		return r
	}
}

func requireErrorCode(t *testing.T, err error, code errorx.Code, message string) {
	t.Helper()

	var errx errorx.Error
	require.ErrorAs(t, err, &errx)
	require.Equal(t, code, errx.Code)
	if message != "" {
		require.Equal(t, message, errx.Message)
	}
}

func fundVault(t *testing.T, ctx context.Context, amount uint64) {
	require.NoError(t, repository.NewRewardRepository().IncreaseVaultBalance(ctx, amount))
}

func getStats(t *testing.T, ctx context.Context, d *rewardDomain, address string) model.UserStats {
	resp, err := d.GetUserStats(ctx, &model.GetUserStatsRequest{Address: address})
	require.NoError(t, err)
	return resp.Stats
}

func Test_rewardDomain_Grant(t *testing.T) {
	ctx := testutil.MockContext()
	d, publisher := newTestRewardDomain(nil)

	_, err := d.Grant(ctx, &model.GrantBoxRequest{Address: testutil.User1})
	requireErrorCode(t, err, errorx.Unauthenticated, "")

	userCtx := testutil.WithUserID(ctx, testutil.User1)
	_, err = d.Grant(userCtx, &model.GrantBoxRequest{Address: testutil.User1})
	requireErrorCode(t, err, errorx.PermissionDenied, "")

	operatorCtx := testutil.WithUserID(ctx, testutil.Operator)
	_, err = d.Grant(operatorCtx, &model.GrantBoxRequest{Address: "not-an-address"})
	requireErrorCode(t, err, errorx.BadRequest, "")

	// N grants give N unclaimed boxes.
	for i := 0; i < 3; i++ {
		_, err = d.Grant(operatorCtx, &model.GrantBoxRequest{Address: testutil.User1})
		require.NoError(t, err)
	}

	stats := getStats(t, ctx, d, testutil.User1)
	require.Equal(t, uint64(3), stats.UnclaimedBoxes)
	require.Equal(t, uint64(0), stats.BoxesOpened)
	require.Len(t, publisher.Published, 3)
	require.Equal(t, model.RewardEventTopic, publisher.Published[0].Topic)
	require.Equal(t, testutil.User1, string(publisher.Published[0].Pack.Key))
}

func Test_rewardDomain_GrantBatch(t *testing.T) {
	ctx := testutil.MockContext()
	d, _ := newTestRewardDomain(nil)
	operatorCtx := testutil.WithUserID(ctx, testutil.Operator)

	resp, err := d.GrantBatch(operatorCtx, &model.GrantBoxBatchRequest{
		Addresses: []string{testutil.User1, "0x0000000000000000000000000000000000000000", testutil.User2},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Granted)
	require.Equal(t, 1, resp.Skipped)

	require.Equal(t, uint64(1), getStats(t, ctx, d, testutil.User1).UnclaimedBoxes)
	require.Equal(t, uint64(1), getStats(t, ctx, d, testutil.User2).UnclaimedBoxes)
	require.Equal(t, uint64(0), getStats(t, ctx, d, "0x0000000000000000000000000000000000000000").UnclaimedBoxes)

	// One invalid entry rejects the whole batch.
	_, err = d.GrantBatch(operatorCtx, &model.GrantBoxBatchRequest{
		Addresses: []string{testutil.User1, "0x1234"},
	})
	requireErrorCode(t, err, errorx.BadRequest, "")
	require.Equal(t, uint64(1), getStats(t, ctx, d, testutil.User1).UnclaimedBoxes)

	_, err = d.GrantBatch(testutil.WithUserID(ctx, testutil.User1), &model.GrantBoxBatchRequest{
		Addresses: []string{testutil.User1},
	})
	requireErrorCode(t, err, errorx.PermissionDenied, "")
}

func Test_rewardDomain_Claim_NoBox(t *testing.T) {
	ctx := testutil.MockContext()
	d, _ := newTestRewardDomain(nil)
	fundVault(t, ctx, 10_000_000)

	userCtx := testutil.WithUserID(ctx, testutil.User1)
	for i := 0; i < 3; i++ {
		_, err := d.Claim(userCtx, &model.ClaimBoxRequest{})
		requireErrorCode(t, err, errorx.NoUnclaimedBox, "No unclaimed boxes")
	}

	_, err := d.Claim(ctx, &model.ClaimBoxRequest{})
	requireErrorCode(t, err, errorx.Unauthenticated, "")
}

func Test_rewardDomain_Claim_InsufficientBalance(t *testing.T) {
	ctx := testutil.MockContext()
	d, publisher := newTestRewardDomain(nil)
	d.roll = fixedRolls(99)

	_, err := d.Grant(testutil.WithUserID(ctx, testutil.Operator), &model.GrantBoxRequest{Address: testutil.User1})
	require.NoError(t, err)

	// The vault holds less than the 1 USDC prize.
	fundVault(t, ctx, 999_999)

	_, err = d.Claim(testutil.WithUserID(ctx, testutil.User1), &model.ClaimBoxRequest{})
	requireErrorCode(t, err, errorx.InsufficientBalance, "Insufficient contract balance")

	// Everything is rolled back.
	stats := getStats(t, ctx, d, testutil.User1)
	require.Equal(t, uint64(1), stats.UnclaimedBoxes)
	require.Equal(t, uint64(0), stats.BoxesOpened)
	require.Equal(t, "0.000000", stats.TotalClaimed)

	global, err := d.GetGlobalStats(ctx, &model.GetGlobalStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, "0.999999", global.Balance)
	require.Equal(t, uint64(0), global.TotalBoxesOpened)
	require.Len(t, publisher.Published, 1)
}

func Test_rewardDomain_Claim(t *testing.T) {
	ctx := testutil.MockContext()
	d, publisher := newTestRewardDomain(nil)
	d.roll = fixedRolls(95)

	_, err := d.Grant(testutil.WithUserID(ctx, testutil.Operator), &model.GrantBoxRequest{Address: testutil.User1})
	require.NoError(t, err)
	fundVault(t, ctx, 1_000_000)

	resp, err := d.Claim(testutil.WithUserID(ctx, testutil.User1), &model.ClaimBoxRequest{})
	require.NoError(t, err)
	require.Equal(t, 3, resp.TierIndex)
	require.Equal(t, uint64(500_000), resp.PrizeUnits)
	require.Equal(t, "0.500000", resp.Prize)
	require.True(t, resp.IsBiggestWin)

	stats := getStats(t, ctx, d, testutil.User1)
	require.Equal(t, uint64(0), stats.UnclaimedBoxes)
	require.Equal(t, uint64(1), stats.BoxesOpened)
	require.Equal(t, "0.500000", stats.TotalClaimed)
	require.Equal(t, "0.500000", stats.BiggestWin)

	global, err := d.GetGlobalStats(ctx, &model.GetGlobalStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), global.TotalBoxesOpened)
	require.Equal(t, "0.500000", global.TotalRewardsDistributed)
	require.Equal(t, "0.500000", global.Balance)

	payout, err := repository.NewRewardPayoutRepository().GetByID(ctx, resp.PayoutID)
	require.NoError(t, err)
	require.Equal(t, testutil.User1, payout.Recipient)
	require.Equal(t, uint64(500_000), payout.Amount)
	require.Equal(t, entity.RewardPayoutKindClaim, payout.Kind)
	require.Equal(t, entity.RewardPayoutStatusPending, payout.Status)

	// The box is gone.
	_, err = d.Claim(testutil.WithUserID(ctx, testutil.User1), &model.ClaimBoxRequest{})
	requireErrorCode(t, err, errorx.NoUnclaimedBox, "No unclaimed boxes")
	require.Len(t, publisher.Published, 2)
}

func Test_rewardDomain_Claim_Totals(t *testing.T) {
	ctx := testutil.MockContext()
	d, _ := newTestRewardDomain(nil)
	d.roll = fixedRolls(0, 99, 50, 39)

	operatorCtx := testutil.WithUserID(ctx, testutil.Operator)
	for i := 0; i < 4; i++ {
		_, err := d.Grant(operatorCtx, &model.GrantBoxRequest{Address: testutil.User1})
		require.NoError(t, err)
	}
	fundVault(t, ctx, 5_000_000)

	userCtx := testutil.WithUserID(ctx, testutil.User1)
	total := uint64(0)
	for i := 0; i < 4; i++ {
		resp, err := d.Claim(userCtx, &model.ClaimBoxRequest{})
		require.NoError(t, err)
		total += resp.PrizeUnits
	}

	// 0.01 + 1 + 0.02 + 0.01
	require.Equal(t, uint64(1_040_000), total)

	stats := getStats(t, ctx, d, testutil.User1)
	require.Equal(t, uint64(4), stats.BoxesOpened)
	require.Equal(t, "1.040000", stats.TotalClaimed)
	require.Equal(t, "1.000000", stats.BiggestWin)

	events, err := d.GetEvents(userCtx, &model.GetRewardEventsRequest{Limit: 50})
	require.NoError(t, err)
	require.Len(t, events.Events, 8)
	require.Equal(t, "box_opened", events.Events[0].Type)
	require.Equal(t, "0.010000", events.Events[0].Data["amount_usdc"])
}

func Test_drawTier(t *testing.T) {
	tiers, err := DefaultPrizeTiers(6)
	require.NoError(t, err)

	testCases := map[int]int{
		0: 0, 39: 0, 40: 1, 69: 1, 70: 2, 89: 2, 90: 3, 97: 3, 98: 4, 99: 4,
	}
	for roll, want := range testCases {
		require.Equal(t, want, drawTier(tiers, roll), "roll %d", roll)
	}

	// Every roll maps to a tier.
	for roll := 0; roll < maxWeight; roll++ {
		i := drawTier(tiers, roll)
		require.GreaterOrEqual(t, i, 0)
		require.Less(t, i, len(tiers))
	}

	// A zero weight tier is never drawn.
	tiers, err = newPrizeTiers([]string{"1", "2"}, []int{0, 100}, 6)
	require.NoError(t, err)
	for roll := 0; roll < maxWeight; roll++ {
		require.Equal(t, 1, drawTier(tiers, roll))
	}
}

func Test_rewardDomain_WithdrawFunds(t *testing.T) {
	ctx := testutil.MockContext()
	d, _ := newTestRewardDomain(nil)
	fundVault(t, ctx, 2_000_000)

	_, err := d.WithdrawFunds(testutil.WithUserID(ctx, testutil.User1), &model.WithdrawFundsRequest{Amount: "1"})
	requireErrorCode(t, err, errorx.PermissionDenied, "")

	operatorCtx := testutil.WithUserID(ctx, testutil.Operator)
	_, err = d.WithdrawFunds(operatorCtx, &model.WithdrawFundsRequest{Amount: "2.000001"})
	requireErrorCode(t, err, errorx.InsufficientBalance, "Insufficient balance")

	_, err = d.WithdrawFunds(operatorCtx, &model.WithdrawFundsRequest{Amount: "abc"})
	requireErrorCode(t, err, errorx.BadRequest, "")

	global, err := d.GetGlobalStats(ctx, &model.GetGlobalStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, "2.000000", global.Balance)

	resp, err := d.WithdrawFunds(operatorCtx, &model.WithdrawFundsRequest{Amount: "1.5"})
	require.NoError(t, err)
	require.Equal(t, "0.500000", resp.Balance)

	payout, err := repository.NewRewardPayoutRepository().GetByID(ctx, resp.PayoutID)
	require.NoError(t, err)
	require.Equal(t, testutil.Operator, payout.Recipient)
	require.Equal(t, uint64(1_500_000), payout.Amount)
	require.Equal(t, entity.RewardPayoutKindWithdraw, payout.Kind)
}

func Test_rewardDomain_UpdatePrizeTiers(t *testing.T) {
	ctx := testutil.MockContext()
	d, _ := newTestRewardDomain(nil)
	operatorCtx := testutil.WithUserID(ctx, testutil.Operator)

	resp, err := d.GetPrizeTiers(ctx, &model.GetPrizeTiersRequest{})
	require.NoError(t, err)
	require.Len(t, resp.Tiers, 5)
	require.Equal(t, "0.010000", resp.Tiers[0].Amount)
	require.Equal(t, 100, resp.Tiers[4].CumulativeWeight)

	testCases := []struct {
		name    string
		req     *model.UpdatePrizeTiersRequest
		message string
	}{
		{
			name:    "length mismatch",
			req:     &model.UpdatePrizeTiersRequest{Amounts: []string{"1", "2"}, Weights: []int{100}},
			message: "Length mismatch",
		},
		{
			name:    "not sum to 100",
			req:     &model.UpdatePrizeTiersRequest{Amounts: []string{"1", "2"}, Weights: []int{50, 99}},
			message: "Weights must sum to 100",
		},
		{
			name:    "empty",
			req:     &model.UpdatePrizeTiersRequest{},
			message: "Prize table must not be empty",
		},
		{
			name:    "decreasing",
			req:     &model.UpdatePrizeTiersRequest{Amounts: []string{"1", "2", "3"}, Weights: []int{60, 50, 100}},
			message: "Cumulative weights must be non-decreasing",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.UpdatePrizeTiers(operatorCtx, tc.req)
			requireErrorCode(t, err, errorx.BadRequest, tc.message)
		})
	}

	_, err = d.UpdatePrizeTiers(testutil.WithUserID(ctx, testutil.User1), &model.UpdatePrizeTiersRequest{
		Amounts: []string{"1"}, Weights: []int{100},
	})
	requireErrorCode(t, err, errorx.PermissionDenied, "")

	_, err = d.UpdatePrizeTiers(operatorCtx, &model.UpdatePrizeTiersRequest{
		Amounts: []string{"0.1", "0.2"}, Weights: []int{50, 100},
	})
	require.NoError(t, err)

	resp, err = d.GetPrizeTiers(ctx, &model.GetPrizeTiersRequest{})
	require.NoError(t, err)
	require.Equal(t, []model.PrizeTier{
		{Amount: "0.100000", AmountUnits: 100_000, CumulativeWeight: 50},
		{Amount: "0.200000", AmountUnits: 200_000, CumulativeWeight: 100},
	}, resp.Tiers)
}

func transferLog(token, from, to ethcommon.Address, value *big.Int) *ethtypes.Log {
	parsed, err := erc20.Erc20MetaData.GetAbi()
	if err != nil {
		panic(err)
	}

	return &ethtypes.Log{
		Address: token,
		Topics: []ethcommon.Hash{
			parsed.Events["Transfer"].ID,
			ethcommon.BytesToHash(from.Bytes()),
			ethcommon.BytesToHash(to.Bytes()),
		},
		Data: ethcommon.LeftPadBytes(value.Bytes(), 32),
	}
}

func Test_rewardDomain_DepositFunds(t *testing.T) {
	ctx := testutil.MockContext()
	custody, err := blockchain.CustodyAddress(ctx)
	require.NoError(t, err)

	token := ethcommon.HexToAddress(testutil.USDCAddress)
	user := ethcommon.HexToAddress(testutil.User1)

	goodTx := ethcommon.HexToHash("0x01")
	wrongAmountTx := ethcommon.HexToHash("0x02")
	revertedTx := ethcommon.HexToHash("0x03")
	unknownTx := ethcommon.HexToHash("0x04")

	client := &mocks.EthClient{}
	client.On("TransactionReceipt", mock.Anything, goodTx).Return(&ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusSuccessful,
		Logs:   []*ethtypes.Log{transferLog(token, user, custody, big.NewInt(2_500_000))},
	}, nil)
	client.On("TransactionReceipt", mock.Anything, wrongAmountTx).Return(&ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusSuccessful,
		Logs:   []*ethtypes.Log{transferLog(token, user, custody, big.NewInt(1))},
	}, nil)
	client.On("TransactionReceipt", mock.Anything, revertedTx).Return(&ethtypes.Receipt{
		Status: ethtypes.ReceiptStatusFailed,
	}, nil)
	client.On("TransactionReceipt", mock.Anything, unknownTx).Return(nil, ethereum.NotFound)

	d, publisher := newTestRewardDomain(client)
	userCtx := testutil.WithUserID(ctx, testutil.User1)

	_, err = d.DepositFunds(userCtx, &model.DepositFundsRequest{Amount: "2.5", TxHash: wrongAmountTx.Hex()})
	requireErrorCode(t, err, errorx.BadRequest, "")

	_, err = d.DepositFunds(userCtx, &model.DepositFundsRequest{Amount: "2.5", TxHash: revertedTx.Hex()})
	requireErrorCode(t, err, errorx.BadRequest, "Transaction failed")

	_, err = d.DepositFunds(userCtx, &model.DepositFundsRequest{Amount: "2.5", TxHash: unknownTx.Hex()})
	requireErrorCode(t, err, errorx.NotFound, "")

	_, err = d.DepositFunds(userCtx, &model.DepositFundsRequest{Amount: "2.5", TxHash: "0x1234"})
	requireErrorCode(t, err, errorx.BadRequest, "Invalid transaction hash")

	// Only the sender of the transfer can claim the deposit.
	_, err = d.DepositFunds(testutil.WithUserID(ctx, testutil.User2),
		&model.DepositFundsRequest{Amount: "2.5", TxHash: goodTx.Hex()})
	requireErrorCode(t, err, errorx.BadRequest, "")

	resp, err := d.DepositFunds(userCtx, &model.DepositFundsRequest{Amount: "2.5", TxHash: goodTx.Hex()})
	require.NoError(t, err)
	require.Equal(t, "2.500000", resp.Balance)
	require.Len(t, publisher.Published, 1)

	_, err = d.DepositFunds(userCtx, &model.DepositFundsRequest{Amount: "2.5", TxHash: goodTx.Hex()})
	requireErrorCode(t, err, errorx.AlreadyExists, "")

	global, err := d.GetGlobalStats(ctx, &model.GetGlobalStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, "2.500000", global.Balance)
}

func Test_rewardDomain_GetUserStats_Unknown(t *testing.T) {
	ctx := testutil.MockContext()
	d, _ := newTestRewardDomain(nil)

	stats := getStats(t, ctx, d, testutil.User2)
	require.Equal(t, model.UserStats{
		Address:      testutil.User2,
		TotalClaimed: "0.000000",
		BiggestWin:   "0.000000",
	}, stats)

	// Without an address the caller is used.
	resp, err := d.GetUserStats(testutil.WithUserID(ctx, testutil.User1), &model.GetUserStatsRequest{})
	require.NoError(t, err)
	require.Equal(t, testutil.User1, resp.Stats.Address)
}
