package domain

import (
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/scanpay-lab/backend/internal/entity"
	"github.com/scanpay-lab/backend/internal/model"
	"github.com/scanpay-lab/backend/pkg/enum"
	"github.com/scanpay-lab/backend/pkg/numberutil"
	"github.com/scanpay-lab/backend/pkg/paynow"
)

func convertDecodedQR(d paynow.Decoded) model.DecodedQR {
	return model.DecodedQR{
		Raw:          d.Raw,
		ProxyType:    d.ProxyType,
		ProxyValue:   d.ProxyValue,
		Amount:       d.Amount,
		Reference:    d.Reference,
		MerchantName: d.MerchantName,
		Currency:     d.Currency,
		IsPayNow:     d.IsPayNow,
		IsValidUEN:   d.ProxyType == paynow.ProxyTypeUEN && paynow.IsValidUEN(d.ProxyValue),
	}
}

func convertMerchant(merchant *entity.Merchant) model.Merchant {
	if merchant == nil {
		return model.Merchant{}
	}

	return model.Merchant{
		Payload:      merchant.Payload,
		TokenID:      merchant.TokenID,
		Owner:        merchant.Owner,
		ProxyType:    merchant.ProxyType,
		ProxyValue:   merchant.ProxyValue,
		IsPayNow:     merchant.IsPayNow,
		RegisteredAt: merchant.CreatedAt,
	}
}

func convertQRLabel(label *entity.QRLabel) model.QRLabel {
	if label == nil {
		return model.QRLabel{}
	}

	return model.QRLabel{
		Payload:      label.Payload,
		Name:         label.Name,
		TxHash:       label.TxHash,
		RegisteredAt: label.RegisteredAt,
	}
}

func convertPrizeTier(tier entity.PrizeTier, decimals int32) model.PrizeTier {
	return model.PrizeTier{
		Amount:           numberutil.FormatUnits(tier.Amount, decimals),
		AmountUnits:      tier.Amount,
		CumulativeWeight: tier.CumulativeWeight,
	}
}

func convertUserStats(address string, account *entity.RewardAccount, decimals int32) model.UserStats {
	if account == nil {
		account = &entity.RewardAccount{}
	}

	return model.UserStats{
		Address:        address,
		UnclaimedBoxes: account.UnclaimedBoxes,
		BoxesOpened:    account.BoxesOpened,
		TotalClaimed:   numberutil.FormatUnits(account.TotalClaimed, decimals),
		BiggestWin:     numberutil.FormatUnits(account.BiggestWin, decimals),
	}
}

// convertRewardEvent adds the human readable amount next to the raw units
// stored in the event payload.
func convertRewardEvent(event *entity.RewardEvent, decimals int32) model.RewardEvent {
	data := map[string]any{}
	for k, v := range event.Data {
		data[k] = v
	}

	var amounts struct {
		Amount *uint64 `mapstructure:"amount"`
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &amounts,
	})
	if err == nil && decoder.Decode(map[string]any(event.Data)) == nil && amounts.Amount != nil {
		data["amount_usdc"] = numberutil.FormatUnits(*amounts.Amount, decimals)
	}

	return model.RewardEvent{
		ID:        strconv.FormatInt(event.ID, 10),
		Type:      enum.ToString(event.Type),
		Address:   event.Address,
		Data:      data,
		CreatedAt: event.CreatedAt,
	}
}
