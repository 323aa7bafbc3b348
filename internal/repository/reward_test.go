package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func Test_rewardRepository_UnclaimedBoxes(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardRepository()

	require.NoError(t, repo.IncreaseUnclaimedBoxes(ctx, testutil.User1, 1))
	require.NoError(t, repo.IncreaseUnclaimedBoxes(ctx, testutil.User1, 2))

	account, err := repo.GetAccount(ctx, testutil.User1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), account.UnclaimedBoxes)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.UseUnclaimedBox(ctx, testutil.User1))
	}
	require.ErrorIs(t, repo.UseUnclaimedBox(ctx, testutil.User1), gorm.ErrRecordNotFound)
	require.ErrorIs(t, repo.UseUnclaimedBox(ctx, testutil.User2), gorm.ErrRecordNotFound)

	_, err = repo.GetAccount(ctx, testutil.User2)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func Test_rewardRepository_RecordWin(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardRepository()

	require.ErrorIs(t, repo.RecordWin(ctx, testutil.User1, 10), gorm.ErrRecordNotFound)

	require.NoError(t, repo.IncreaseUnclaimedBoxes(ctx, testutil.User1, 3))
	require.NoError(t, repo.RecordWin(ctx, testutil.User1, 50_000))
	require.NoError(t, repo.RecordWin(ctx, testutil.User1, 1_000_000))
	require.NoError(t, repo.RecordWin(ctx, testutil.User1, 10_000))

	account, err := repo.GetAccount(ctx, testutil.User1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), account.BoxesOpened)
	require.Equal(t, uint64(1_060_000), account.TotalClaimed)
	require.Equal(t, uint64(1_000_000), account.BiggestWin)
}

func Test_rewardRepository_Vault(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardRepository()

	vault, err := repo.GetVault(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), vault.Balance)

	require.ErrorIs(t, repo.DecreaseVaultBalance(ctx, 1), gorm.ErrRecordNotFound)

	require.NoError(t, repo.IncreaseVaultBalance(ctx, 100))
	require.NoError(t, repo.DecreaseVaultBalance(ctx, 40))
	require.ErrorIs(t, repo.DecreaseVaultBalance(ctx, 61), gorm.ErrRecordNotFound)
	require.NoError(t, repo.DecreaseVaultBalance(ctx, 60))

	require.NoError(t, repo.RecordVaultWin(ctx, 40))

	vault, err = repo.GetVault(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), vault.Balance)
	require.Equal(t, uint64(1), vault.TotalBoxesOpened)
	require.Equal(t, uint64(40), vault.TotalRewardsDistributed)
}

func Test_rewardRepository_ReplacePrizeTiers(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardRepository()

	tiers, err := repo.GetPrizeTiers(ctx)
	require.NoError(t, err)
	require.Empty(t, tiers)

	require.NoError(t, repo.ReplacePrizeTiers(ctx, []entity.PrizeTier{
		{Position: 1, Amount: 10, CumulativeWeight: 50},
		{Position: 2, Amount: 20, CumulativeWeight: 100},
	}))
	require.NoError(t, repo.ReplacePrizeTiers(ctx, []entity.PrizeTier{
		{Position: 1, Amount: 30, CumulativeWeight: 100},
	}))

	tiers, err = repo.GetPrizeTiers(ctx)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	require.Equal(t, uint64(30), tiers[0].Amount)
	require.Equal(t, 100, tiers[0].CumulativeWeight)
}

func Test_rewardRepository_CreateDepositIfNotExists(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardRepository()

	deposit := &entity.RewardDeposit{TxHash: "0xabc", Depositor: testutil.User1, Amount: 10}
	created, err := repo.CreateDepositIfNotExists(ctx, deposit)
	require.NoError(t, err)
	require.True(t, created)

	created, err = repo.CreateDepositIfNotExists(ctx, &entity.RewardDeposit{
		TxHash: "0xabc", Depositor: testutil.User2, Amount: 99,
	})
	require.NoError(t, err)
	require.False(t, created)
}

func Test_rewardPayoutRepository_UpdateStatus(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardPayoutRepository()

	payout := &entity.RewardPayout{
		Base:      entity.Base{ID: uuid.NewString()},
		Recipient: testutil.User1,
		Amount:    10_000,
		Kind:      entity.RewardPayoutKindClaim,
		Status:    entity.RewardPayoutStatusPending,
	}
	require.NoError(t, repo.Create(ctx, payout))

	pending, err := repo.GetListByStatus(ctx, entity.RewardPayoutStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	at := time.Now()
	err = repo.MarkDispatched(ctx, payout.ID, DispatchedTx{Hash: "0x01", Nonce: 4, Raw: "0xf8", At: at})
	require.NoError(t, err)

	// A second worker holding a stale view loses the race.
	err = repo.MarkDispatched(ctx, payout.ID, DispatchedTx{Hash: "0x02", Nonce: 5, Raw: "0xf9", At: at})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	result, err := repo.GetByID(ctx, payout.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RewardPayoutStatusDispatched, result.Status)
	require.Equal(t, "0x01", result.TxHash)
	require.Equal(t, uint64(4), result.Nonce)
	require.Equal(t, "0xf8", result.RawTx)
	require.Equal(t, 1, result.Attempts)

	later := at.Add(time.Minute)
	require.ErrorIs(t, repo.UpdateDispatchedAt(ctx, payout.ID, "0x02", later), gorm.ErrRecordNotFound)
	require.NoError(t, repo.UpdateDispatchedAt(ctx, payout.ID, "0x01", later))

	err = repo.UpdateStatus(ctx, payout.ID,
		entity.RewardPayoutStatusDispatched, entity.RewardPayoutStatusSuccess)
	require.NoError(t, err)

	result, err = repo.GetByID(ctx, payout.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RewardPayoutStatusSuccess, result.Status)
	require.Equal(t, "0x01", result.TxHash)
	require.WithinDuration(t, later, *result.DispatchedAt, time.Millisecond)

	list, err := repo.GetListByRecipient(ctx, testutil.User1, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func Test_rewardPayoutRepository_Release(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardPayoutRepository()

	payout := &entity.RewardPayout{
		Base:      entity.Base{ID: uuid.NewString()},
		Recipient: testutil.User1,
		Amount:    10_000,
		Kind:      entity.RewardPayoutKindClaim,
		Status:    entity.RewardPayoutStatusPending,
	}
	require.NoError(t, repo.Create(ctx, payout))
	require.NoError(t, repo.MarkDispatched(ctx, payout.ID,
		DispatchedTx{Hash: "0x01", Nonce: 1, Raw: "0xf8", At: time.Now()}))

	// Only the holder of the transfer can release it.
	require.ErrorIs(t, repo.Release(ctx, payout.ID, "0x02"), gorm.ErrRecordNotFound)
	require.NoError(t, repo.Release(ctx, payout.ID, "0x01"))

	result, err := repo.GetByID(ctx, payout.ID)
	require.NoError(t, err)
	require.Equal(t, entity.RewardPayoutStatusPending, result.Status)
	require.Empty(t, result.TxHash)
	require.Empty(t, result.RawTx)
	require.Nil(t, result.DispatchedAt)
	require.Equal(t, 0, result.Attempts)

	require.ErrorIs(t, repo.Release(ctx, payout.ID, "0x01"), gorm.ErrRecordNotFound)
}

func Test_rewardEventRepository_GetList(t *testing.T) {
	ctx := testutil.MockContext()
	repo := NewRewardEventRepository()

	events := []*entity.RewardEvent{
		{SnowFlakeBase: entity.SnowFlakeBase{ID: 1}, Type: entity.RewardEventTypeBoxGranted, Address: testutil.User1, Data: entity.Map{"amount": 1}},
		{SnowFlakeBase: entity.SnowFlakeBase{ID: 2}, Type: entity.RewardEventTypeBoxOpened, Address: testutil.User1, Data: entity.Map{"prize": 10}},
		{SnowFlakeBase: entity.SnowFlakeBase{ID: 3}, Type: entity.RewardEventTypeBoxGranted, Address: testutil.User2, Data: entity.Map{}},
	}
	for _, e := range events {
		require.NoError(t, repo.Create(ctx, e))
	}

	result, err := repo.GetList(ctx, RewardEventFilter{Address: testutil.User1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, int64(2), result[0].ID)
	require.Equal(t, int64(1), result[1].ID)

	result, err = repo.GetList(ctx, RewardEventFilter{
		Types: []entity.RewardEventType{entity.RewardEventTypeBoxGranted},
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, int64(3), result[0].ID)
}
