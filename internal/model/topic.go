package model

var (
	RewardEventTopic        = "REWARD_EVENT"
	MerchantRegisteredTopic = "MERCHANT_REGISTERED"
)

// RewardEventMessage is published for every row of the reward event log.
type RewardEventMessage struct {
	ID      int64          `json:"id"`
	Type    string         `json:"type"`
	Address string         `json:"address"`
	Data    map[string]any `json:"data"`
}

type MerchantRegisteredMessage struct {
	TokenID int64  `json:"token_id"`
	Owner   string `json:"owner"`
	Payload string `json:"payload"`
}
