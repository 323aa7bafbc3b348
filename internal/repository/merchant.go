package repository

import (
	"context"

	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const merchantSequenceID = 1

type MerchantRepository interface {
	Create(ctx context.Context, merchant *entity.Merchant) error
	GetByKeyHash(ctx context.Context, keyHash string) (*entity.Merchant, error)
	GetListByOwner(ctx context.Context, owner string, offset, limit int) ([]entity.Merchant, error)
	Count(ctx context.Context) (int64, error)
	NextTokenID(ctx context.Context) (int64, error)
}

type merchantRepository struct{}

func NewMerchantRepository() *merchantRepository {
	return &merchantRepository{}
}

func (r *merchantRepository) Create(ctx context.Context, merchant *entity.Merchant) error {
	return xcontext.DB(ctx).Create(merchant).Error
}

func (r *merchantRepository) GetByKeyHash(ctx context.Context, keyHash string) (*entity.Merchant, error) {
	var result entity.Merchant
	if err := xcontext.DB(ctx).Take(&result, "key_hash=?", keyHash).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *merchantRepository) GetListByOwner(
	ctx context.Context, owner string, offset, limit int,
) ([]entity.Merchant, error) {
	var result []entity.Merchant
	err := xcontext.DB(ctx).Where("owner=?", owner).
		Order("token_id ASC").Offset(offset).Limit(limit).
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *merchantRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := xcontext.DB(ctx).Model(&entity.Merchant{}).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

// NextTokenID takes the next token id. It must run inside a transaction: the
// increment locks the sequence row until commit, and a rollback gives the id
// back.
func (r *merchantRepository) NextTokenID(ctx context.Context) (int64, error) {
	db := xcontext.DB(ctx)

	err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entity.MerchantSequence{ID: merchantSequenceID}).Error
	if err != nil {
		return 0, err
	}

	err = db.Model(&entity.MerchantSequence{}).
		Where("id=?", merchantSequenceID).
		Update("next_token_id", gorm.Expr("next_token_id+?", 1)).Error
	if err != nil {
		return 0, err
	}

	var seq entity.MerchantSequence
	if err := db.Take(&seq, "id=?", merchantSequenceID).Error; err != nil {
		return 0, err
	}

	return seq.NextTokenID - 1, nil
}
