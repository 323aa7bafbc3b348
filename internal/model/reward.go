package model

import "time"

type PrizeTier struct {
	Amount           string `json:"amount"`
	AmountUnits      uint64 `json:"amount_units"`
	CumulativeWeight int    `json:"cumulative_weight"`
}

type UserStats struct {
	Address        string `json:"address"`
	UnclaimedBoxes uint64 `json:"unclaimed_boxes"`
	BoxesOpened    uint64 `json:"boxes_opened"`
	TotalClaimed   string `json:"total_claimed"`
	BiggestWin     string `json:"biggest_win"`
}

type RewardEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Address   string         `json:"address"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

type GrantBoxRequest struct {
	Address string `json:"address"`
}

type GrantBoxResponse struct{}

type GrantBoxBatchRequest struct {
	Addresses []string `json:"addresses"`
}

type GrantBoxBatchResponse struct {
	Granted int `json:"granted"`
	Skipped int `json:"skipped"`
}

type ClaimBoxRequest struct{}

type ClaimBoxResponse struct {
	Prize        string `json:"prize"`
	PrizeUnits   uint64 `json:"prize_units"`
	TierIndex    int    `json:"tier_index"`
	PayoutID     string `json:"payout_id"`
	IsBiggestWin bool   `json:"is_biggest_win"`
}

type GetUserStatsRequest struct {
	Address string `form:"address"`
}

type GetUserStatsResponse struct {
	Stats UserStats `json:"stats"`
}

type DepositFundsRequest struct {
	// Amount is a decimal USDC string, e.g. "12.5".
	Amount string `json:"amount"`
	TxHash string `json:"tx_hash"`
}

type DepositFundsResponse struct {
	Balance string `json:"balance"`
}

type WithdrawFundsRequest struct {
	Amount string `json:"amount"`
}

type WithdrawFundsResponse struct {
	PayoutID string `json:"payout_id"`
	Balance  string `json:"balance"`
}

type UpdatePrizeTiersRequest struct {
	Amounts []string `json:"amounts"`
	Weights []int    `json:"weights"`
}

type UpdatePrizeTiersResponse struct{}

type GetPrizeTiersRequest struct{}

type GetPrizeTiersResponse struct {
	Tiers []PrizeTier `json:"tiers"`
}

type GetGlobalStatsRequest struct{}

type GetGlobalStatsResponse struct {
	TotalBoxesOpened        uint64 `json:"total_boxes_opened"`
	TotalRewardsDistributed string `json:"total_rewards_distributed"`
	Balance                 string `json:"balance"`
}

type GetRewardEventsRequest struct {
	Offset int `form:"offset"`
	Limit  int `form:"limit"`
}

type GetRewardEventsResponse struct {
	Events []RewardEvent `json:"events"`
}
