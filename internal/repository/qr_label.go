package repository

import (
	"context"

	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type QRLabelRepository interface {
	Create(ctx context.Context, label *entity.QRLabel) error
	Get(ctx context.Context, wallet, keyHash string) (*entity.QRLabel, error)
	GetListByWallet(ctx context.Context, wallet string) ([]entity.QRLabel, error)
	UpdateName(ctx context.Context, wallet, keyHash, name string) error
	Delete(ctx context.Context, wallet, keyHash string) error
}

type qrLabelRepository struct{}

func NewQRLabelRepository() *qrLabelRepository {
	return &qrLabelRepository{}
}

func (r *qrLabelRepository) Create(ctx context.Context, label *entity.QRLabel) error {
	return xcontext.DB(ctx).Create(label).Error
}

func (r *qrLabelRepository) Get(ctx context.Context, wallet, keyHash string) (*entity.QRLabel, error) {
	var result entity.QRLabel
	err := xcontext.DB(ctx).Take(&result, "wallet=? AND key_hash=?", wallet, keyHash).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *qrLabelRepository) GetListByWallet(ctx context.Context, wallet string) ([]entity.QRLabel, error) {
	var result []entity.QRLabel
	err := xcontext.DB(ctx).Where("wallet=?", wallet).
		Order("registered_at ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *qrLabelRepository) UpdateName(ctx context.Context, wallet, keyHash, name string) error {
	tx := xcontext.DB(ctx).Model(&entity.QRLabel{}).
		Where("wallet=? AND key_hash=?", wallet, keyHash).
		Update("name", name)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// Delete removes the row for good so the same payload can be labeled again.
func (r *qrLabelRepository) Delete(ctx context.Context, wallet, keyHash string) error {
	tx := xcontext.DB(ctx).Unscoped().
		Where("wallet=? AND key_hash=?", wallet, keyHash).
		Delete(&entity.QRLabel{})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
