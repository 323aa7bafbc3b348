package repository

import (
	"context"
	"time"

	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type RewardPayoutRepository interface {
	Create(ctx context.Context, payout *entity.RewardPayout) error
	GetByID(ctx context.Context, id string) (*entity.RewardPayout, error)
	GetListByStatus(ctx context.Context, status entity.RewardPayoutStatus, limit int) ([]entity.RewardPayout, error)
	GetListByRecipient(ctx context.Context, recipient string, offset, limit int) ([]entity.RewardPayout, error)
	UpdateStatus(ctx context.Context, id string, from, to entity.RewardPayoutStatus) error
	MarkDispatched(ctx context.Context, id string, tx DispatchedTx) error
	Release(ctx context.Context, id, txHash string) error
	UpdateDispatchedAt(ctx context.Context, id, txHash string, at time.Time) error
}

// DispatchedTx is the signed transfer of a payout.
type DispatchedTx struct {
	Hash  string
	Nonce uint64
	Raw   string
	At    time.Time
}

type rewardPayoutRepository struct{}

func NewRewardPayoutRepository() *rewardPayoutRepository {
	return &rewardPayoutRepository{}
}

func (r *rewardPayoutRepository) Create(ctx context.Context, payout *entity.RewardPayout) error {
	return xcontext.DB(ctx).Create(payout).Error
}

func (r *rewardPayoutRepository) GetByID(ctx context.Context, id string) (*entity.RewardPayout, error) {
	var result entity.RewardPayout
	if err := xcontext.DB(ctx).Take(&result, "id=?", id).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *rewardPayoutRepository) GetListByStatus(
	ctx context.Context, status entity.RewardPayoutStatus, limit int,
) ([]entity.RewardPayout, error) {
	var result []entity.RewardPayout
	err := xcontext.DB(ctx).Where("status=?", status).
		Order("created_at ASC").Limit(limit).Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *rewardPayoutRepository) GetListByRecipient(
	ctx context.Context, recipient string, offset, limit int,
) ([]entity.RewardPayout, error) {
	var result []entity.RewardPayout
	err := xcontext.DB(ctx).Where("recipient=?", recipient).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func updatePayout(ctx context.Context, updates map[string]any, query string, args ...any) error {
	tx := xcontext.DB(ctx).Model(&entity.RewardPayout{}).Where(query, args...).Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// UpdateStatus moves a payout from one status to another. It fails with
// gorm.ErrRecordNotFound if the payout is no longer in the from status.
func (r *rewardPayoutRepository) UpdateStatus(
	ctx context.Context, id string, from, to entity.RewardPayoutStatus,
) error {
	return updatePayout(ctx, map[string]any{"status": to},
		"id=? AND status=?", id, from)
}

// MarkDispatched moves a pending payout to dispatched with its signed
// transfer. Each call counts as a new attempt.
func (r *rewardPayoutRepository) MarkDispatched(ctx context.Context, id string, tx DispatchedTx) error {
	return updatePayout(ctx, map[string]any{
		"status":        entity.RewardPayoutStatusDispatched,
		"tx_hash":       tx.Hash,
		"nonce":         tx.Nonce,
		"raw_tx":        tx.Raw,
		"dispatched_at": tx.At,
		"attempts":      gorm.Expr("attempts+?", 1),
	}, "id=? AND status=?", id, entity.RewardPayoutStatusPending)
}

// Release puts back a dispatched payout whose transfer was never sent.
func (r *rewardPayoutRepository) Release(ctx context.Context, id, txHash string) error {
	return updatePayout(ctx, map[string]any{
		"status":        entity.RewardPayoutStatusPending,
		"tx_hash":       "",
		"raw_tx":        "",
		"dispatched_at": nil,
		"attempts":      gorm.Expr("attempts-?", 1),
	}, "id=? AND status=? AND tx_hash=?", id, entity.RewardPayoutStatusDispatched, txHash)
}

// UpdateDispatchedAt restarts the dispatch timeout after a broadcast of the
// same transfer.
func (r *rewardPayoutRepository) UpdateDispatchedAt(ctx context.Context, id, txHash string, at time.Time) error {
	return updatePayout(ctx, map[string]any{"dispatched_at": at},
		"id=? AND status=? AND tx_hash=?", id, entity.RewardPayoutStatusDispatched, txHash)
}
