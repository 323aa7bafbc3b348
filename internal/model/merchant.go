package model

import "time"

type DecodedQR struct {
	Raw          string `json:"raw"`
	ProxyType    string `json:"proxy_type,omitempty"`
	ProxyValue   string `json:"proxy_value,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Reference    string `json:"reference,omitempty"`
	MerchantName string `json:"merchant_name,omitempty"`
	Currency     string `json:"currency,omitempty"`
	IsPayNow     bool   `json:"is_paynow"`
	IsValidUEN   bool   `json:"is_valid_uen"`
}

type Merchant struct {
	Payload      string    `json:"payload"`
	TokenID      int64     `json:"token_id"`
	Owner        string    `json:"owner"`
	ProxyType    string    `json:"proxy_type,omitempty"`
	ProxyValue   string    `json:"proxy_value,omitempty"`
	IsPayNow     bool      `json:"is_paynow"`
	RegisteredAt time.Time `json:"registered_at"`
}

type DecodeQRRequest struct {
	Payload string `form:"payload"`
}

type DecodeQRResponse struct {
	Decoded DecodedQR `json:"decoded"`
}

type ResolveQRRequest struct {
	Payload string `form:"payload"`
}

type ResolveQRResponse struct {
	Decoded      DecodedQR `json:"decoded"`
	IsRegistered bool      `json:"is_registered"`
	Owner        string    `json:"owner,omitempty"`
	TokenID      int64     `json:"token_id"`
}

type IsRegisteredRequest struct {
	Payload string `form:"payload"`
}

type IsRegisteredResponse struct {
	IsRegistered bool `json:"is_registered"`
}

type OwnerOfRequest struct {
	Payload string `form:"payload"`
}

type OwnerOfResponse struct {
	Owner   string `json:"owner"`
	TokenID int64  `json:"token_id"`
}

type RegisterMerchantRequest struct {
	Payload string `json:"payload"`
}

type RegisterMerchantResponse struct {
	Merchant Merchant `json:"merchant"`
}

type GetTotalMerchantsRequest struct{}

type GetTotalMerchantsResponse struct {
	Total int64 `json:"total"`
}

type GetMyMerchantsRequest struct {
	Offset int `form:"offset"`
	Limit  int `form:"limit"`
}

type GetMyMerchantsResponse struct {
	Merchants []Merchant `json:"merchants"`
}
