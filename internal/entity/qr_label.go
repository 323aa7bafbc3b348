package entity

import "time"

type QRLabel struct {
	Base

	Wallet  string `gorm:"uniqueIndex:idx_qr_labels_wallet_key;size:42"`
	KeyHash string `gorm:"uniqueIndex:idx_qr_labels_wallet_key;size:64"`
	Payload string `gorm:"type:text"`

	Name         string
	TxHash       string
	RegisteredAt time.Time
}
