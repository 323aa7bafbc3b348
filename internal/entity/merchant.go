package entity

// Merchant binds a QR payload to the wallet that registered it first. Rows
// are never updated nor deleted.
type Merchant struct {
	Base

	// KeyHash is the hex sha256 of Payload. Payloads are compared through it
	// so that lookups are exact and case-sensitive on every database.
	KeyHash string `gorm:"uniqueIndex;size:64"`
	Payload string `gorm:"type:text"`
	TokenID int64  `gorm:"uniqueIndex"`
	Owner   string `gorm:"index;size:42"`

	ProxyType  string
	ProxyValue string
	IsPayNow   bool
}

// MerchantSequence is a single row holding the next token id. Updating it
// locks the row until the registering transaction ends.
type MerchantSequence struct {
	ID          int `gorm:"primaryKey;autoIncrement:false"`
	NextTokenID int64
}
