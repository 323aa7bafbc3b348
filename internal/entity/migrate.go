package entity

import (
	"context"

	"github.com/scanpay-lab/backend/pkg/xcontext"
)

func MigrateTable(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&Merchant{},
		&MerchantSequence{},
		&QRLabel{},
		&RewardAccount{},
		&PrizeTier{},
		&RewardVault{},
		&RewardPayout{},
		&RewardDeposit{},
		&RewardEvent{},
	)
}
