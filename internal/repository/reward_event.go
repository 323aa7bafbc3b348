package repository

import (
	"context"

	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/xcontext"
)

type RewardEventFilter struct {
	Address string
	Types   []entity.RewardEventType
	Offset  int
	Limit   int
}

type RewardEventRepository interface {
	Create(ctx context.Context, event *entity.RewardEvent) error
	GetList(ctx context.Context, filter RewardEventFilter) ([]entity.RewardEvent, error)
}

type rewardEventRepository struct{}

func NewRewardEventRepository() *rewardEventRepository {
	return &rewardEventRepository{}
}

func (r *rewardEventRepository) Create(ctx context.Context, event *entity.RewardEvent) error {
	return xcontext.DB(ctx).Create(event).Error
}

func (r *rewardEventRepository) GetList(
	ctx context.Context, filter RewardEventFilter,
) ([]entity.RewardEvent, error) {
	tx := xcontext.DB(ctx).Model(&entity.RewardEvent{})
	if filter.Address != "" {
		tx = tx.Where("address=?", filter.Address)
	}

	if len(filter.Types) > 0 {
		tx = tx.Where("type IN (?)", filter.Types)
	}

	var result []entity.RewardEvent
	err := tx.Order("id DESC").Offset(filter.Offset).Limit(filter.Limit).Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}
