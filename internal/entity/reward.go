package entity

import (
	"time"

	"github.com/scanpay-lab/backend/pkg/enum"
)

// RewardVaultID is the key of the single custody row.
const RewardVaultID = "default"

type RewardAccount struct {
	Address string `gorm:"primaryKey;size:42"`

	UnclaimedBoxes uint64
	BoxesOpened    uint64
	TotalClaimed   uint64
	BiggestWin     uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

type PrizeTier struct {
	Position         int `gorm:"primaryKey;autoIncrement:false"`
	Amount           uint64
	CumulativeWeight int

	UpdatedAt time.Time
}

type RewardVault struct {
	ID string `gorm:"primaryKey;size:16"`

	Balance                 uint64
	TotalBoxesOpened        uint64
	TotalRewardsDistributed uint64

	UpdatedAt time.Time
}

type RewardPayoutKind string

var (
	RewardPayoutKindClaim    = enum.New(RewardPayoutKind("claim"), "claim")
	RewardPayoutKindWithdraw = enum.New(RewardPayoutKind("withdraw"), "withdraw")
)

type RewardPayoutStatus string

var (
	RewardPayoutStatusPending    = enum.New(RewardPayoutStatus("pending"), "pending")
	RewardPayoutStatusDispatched = enum.New(RewardPayoutStatus("dispatched"), "dispatched")
	RewardPayoutStatusSuccess    = enum.New(RewardPayoutStatus("success"), "success")
	RewardPayoutStatusFailure    = enum.New(RewardPayoutStatus("failure"), "failure")
)

type RewardPayout struct {
	Base

	Recipient string `gorm:"index;size:42"`
	Amount    uint64
	Kind      RewardPayoutKind
	Status    RewardPayoutStatus `gorm:"index"`
	Attempts  int

	// The last signed transfer. It is stored before being sent so that it can
	// be broadcast again instead of signing a second transfer.
	TxHash       string `gorm:"index;size:66"`
	Nonce        uint64
	RawTx        string `gorm:"type:text"`
	DispatchedAt *time.Time
}

type RewardDeposit struct {
	TxHash    string `gorm:"primaryKey;size:66"`
	Depositor string `gorm:"index;size:42"`
	Amount    uint64

	CreatedAt time.Time
}

type RewardEventType string

var (
	RewardEventTypeBoxGranted        = enum.New(RewardEventType("box_granted"), "box_granted")
	RewardEventTypeBoxOpened         = enum.New(RewardEventType("box_opened"), "box_opened")
	RewardEventTypeFundsDeposited    = enum.New(RewardEventType("funds_deposited"), "funds_deposited")
	RewardEventTypeFundsWithdrawn    = enum.New(RewardEventType("funds_withdrawn"), "funds_withdrawn")
	RewardEventTypePrizeTiersUpdated = enum.New(RewardEventType("prize_tiers_updated"), "prize_tiers_updated")
)

type RewardEvent struct {
	SnowFlakeBase
	CreatedAt time.Time

	Type    RewardEventType `gorm:"index"`
	Address string          `gorm:"index;size:42"`
	Data    Map
}
