package repository

import (
	"context"

	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardRepository interface {
	// Account
	GetAccount(ctx context.Context, address string) (*entity.RewardAccount, error)
	IncreaseUnclaimedBoxes(ctx context.Context, address string, n uint64) error
	UseUnclaimedBox(ctx context.Context, address string) error
	RecordWin(ctx context.Context, address string, amount uint64) error

	// Vault
	GetVault(ctx context.Context) (*entity.RewardVault, error)
	IncreaseVaultBalance(ctx context.Context, amount uint64) error
	DecreaseVaultBalance(ctx context.Context, amount uint64) error
	RecordVaultWin(ctx context.Context, amount uint64) error

	// Prize tiers
	GetPrizeTiers(ctx context.Context) ([]entity.PrizeTier, error)
	ReplacePrizeTiers(ctx context.Context, tiers []entity.PrizeTier) error

	// Deposit
	CreateDepositIfNotExists(ctx context.Context, deposit *entity.RewardDeposit) (bool, error)
}

type rewardRepository struct{}

func NewRewardRepository() *rewardRepository {
	return &rewardRepository{}
}

func (r *rewardRepository) GetAccount(ctx context.Context, address string) (*entity.RewardAccount, error) {
	var result entity.RewardAccount
	if err := xcontext.DB(ctx).Take(&result, "address=?", address).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *rewardRepository) IncreaseUnclaimedBoxes(ctx context.Context, address string, n uint64) error {
	return xcontext.DB(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.Assignments(map[string]any{
				"unclaimed_boxes": gorm.Expr("unclaimed_boxes+?", n),
			}),
		}).
		Create(&entity.RewardAccount{Address: address, UnclaimedBoxes: n}).Error
}

func (r *rewardRepository) UseUnclaimedBox(ctx context.Context, address string) error {
	tx := xcontext.DB(ctx).Model(&entity.RewardAccount{}).
		Where("address=? AND unclaimed_boxes > 0", address).
		Update("unclaimed_boxes", gorm.Expr("unclaimed_boxes-?", 1))
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *rewardRepository) RecordWin(ctx context.Context, address string, amount uint64) error {
	tx := xcontext.DB(ctx).Model(&entity.RewardAccount{}).
		Where("address=?", address).
		Updates(map[string]any{
			"boxes_opened":  gorm.Expr("boxes_opened+?", 1),
			"total_claimed": gorm.Expr("total_claimed+?", amount),
			"biggest_win":   gorm.Expr("CASE WHEN biggest_win < ? THEN ? ELSE biggest_win END", amount, amount),
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// GetVault returns the custody row, creating an empty one on first use.
func (r *rewardRepository) GetVault(ctx context.Context) (*entity.RewardVault, error) {
	err := xcontext.DB(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entity.RewardVault{ID: entity.RewardVaultID}).Error
	if err != nil {
		return nil, err
	}

	var result entity.RewardVault
	if err := xcontext.DB(ctx).Take(&result, "id=?", entity.RewardVaultID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *rewardRepository) IncreaseVaultBalance(ctx context.Context, amount uint64) error {
	if _, err := r.GetVault(ctx); err != nil {
		return err
	}

	return xcontext.DB(ctx).Model(&entity.RewardVault{}).
		Where("id=?", entity.RewardVaultID).
		Update("balance", gorm.Expr("balance+?", amount)).Error
}

func (r *rewardRepository) DecreaseVaultBalance(ctx context.Context, amount uint64) error {
	tx := xcontext.DB(ctx).Model(&entity.RewardVault{}).
		Where("id=? AND balance >= ?", entity.RewardVaultID, amount).
		Update("balance", gorm.Expr("balance-?", amount))
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *rewardRepository) RecordVaultWin(ctx context.Context, amount uint64) error {
	return xcontext.DB(ctx).Model(&entity.RewardVault{}).
		Where("id=?", entity.RewardVaultID).
		Updates(map[string]any{
			"total_boxes_opened":        gorm.Expr("total_boxes_opened+?", 1),
			"total_rewards_distributed": gorm.Expr("total_rewards_distributed+?", amount),
		}).Error
}

func (r *rewardRepository) GetPrizeTiers(ctx context.Context) ([]entity.PrizeTier, error) {
	var result []entity.PrizeTier
	if err := xcontext.DB(ctx).Order("position ASC").Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *rewardRepository) ReplacePrizeTiers(ctx context.Context, tiers []entity.PrizeTier) error {
	if err := xcontext.DB(ctx).Where("1=1").Delete(&entity.PrizeTier{}).Error; err != nil {
		return err
	}

	if len(tiers) == 0 {
		return nil
	}

	return xcontext.DB(ctx).Create(&tiers).Error
}

// CreateDepositIfNotExists returns false when the deposit was credited
// before.
func (r *rewardRepository) CreateDepositIfNotExists(
	ctx context.Context, deposit *entity.RewardDeposit,
) (bool, error) {
	tx := xcontext.DB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(deposit)
	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected > 0, nil
}
