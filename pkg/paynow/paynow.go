// Package paynow decodes PayNow payment QR payloads. PayNow follows the
// EMVCo merchant presented QR format: a flat list of TLV entries where some
// entries (merchant account information, additional data) nest their own
// TLV list.
package paynow

import (
	"strings"
)

const (
	TagMerchantAccount = "26"
	TagCurrency        = "53"
	TagAmount          = "54"
	TagMerchantName    = "59"
	TagAdditionalData  = "62"

	SubTagGloballyUniqueID = "00"
	SubTagProxyType        = "01"
	SubTagProxyValue       = "02"
	SubTagReference        = "08"

	GloballyUniqueID = "SG.PAYNOW"

	ProxyTypeMobile = "0"
	ProxyTypeUEN    = "2"
)

// Decoded holds the fields found in a payload. Fields that are not present
// (or empty) in the payload are left as empty strings.
type Decoded struct {
	Raw          string `json:"raw"`
	ProxyType    string `json:"proxy_type,omitempty"`
	ProxyValue   string `json:"proxy_value,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Reference    string `json:"reference,omitempty"`
	MerchantName string `json:"merchant_name,omitempty"`
	Currency     string `json:"currency,omitempty"`
	IsPayNow     bool   `json:"is_paynow"`
}

// Decode never fails. Garbage input yields a Decoded with only Raw set.
func Decode(payload string) Decoded {
	d := Decoded{Raw: strings.TrimSpace(payload)}
	if d.Raw == "" {
		return d
	}

	top := newScan(d.Raw)
	if block, ok := top.get(TagMerchantAccount); ok {
		merchant := newScan(block)
		d.ProxyType, _ = merchant.get(SubTagProxyType)
		d.ProxyValue, _ = merchant.get(SubTagProxyValue)
		if id, ok := merchant.get(SubTagGloballyUniqueID); ok {
			d.IsPayNow = strings.EqualFold(id, GloballyUniqueID)
		}
	}

	d.Amount, _ = top.get(TagAmount)
	d.MerchantName, _ = top.get(TagMerchantName)
	d.Currency, _ = top.get(TagCurrency)
	if block, ok := top.get(TagAdditionalData); ok {
		d.Reference, _ = newScan(block).get(SubTagReference)
	}

	return d
}

// HasProxy reports whether the payload names a payee.
func (d Decoded) HasProxy() bool {
	return d.ProxyValue != ""
}

// IsValidUEN does a shallow check of a Singapore Unique Entity Number:
// 9 or 10 characters ending with a letter.
func IsValidUEN(uen string) bool {
	clean := FormatUEN(uen)
	if len(clean) < 9 || len(clean) > 10 {
		return false
	}

	last := clean[len(clean)-1]
	return last >= 'A' && last <= 'Z'
}

func FormatUEN(uen string) string {
	return strings.ToUpper(strings.TrimSpace(uen))
}
