package model

import "time"

type QRLabel struct {
	Payload      string    `json:"payload"`
	Name         string    `json:"name"`
	TxHash       string    `json:"tx_hash,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

type AddQRLabelRequest struct {
	Payload string `json:"payload"`
	Name    string `json:"name"`
	TxHash  string `json:"tx_hash"`
}

type AddQRLabelResponse struct {
	Label QRLabel `json:"label"`
}

type RenameQRLabelRequest struct {
	Payload string `json:"payload"`
	Name    string `json:"name"`
}

type RenameQRLabelResponse struct{}

type DeleteQRLabelRequest struct {
	Payload string `json:"payload"`
}

type DeleteQRLabelResponse struct{}

type GetQRLabelRequest struct {
	Payload string `form:"payload"`
}

type GetQRLabelResponse struct {
	Label QRLabel `json:"label"`
}

type GetQRLabelNameRequest struct {
	Payload string `form:"payload"`
}

type GetQRLabelNameResponse struct {
	Name string `json:"name"`
}

type GetQRLabelsRequest struct{}

type GetQRLabelsResponse struct {
	Labels []QRLabel `json:"labels"`
}
