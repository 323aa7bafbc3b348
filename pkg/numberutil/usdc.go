package numberutil

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ToUnits converts a human readable token amount ("0.05") into the smallest
// token unit using the given number of decimals. Amounts with more precision
// than the token supports, negative amounts and overflows are rejected.
func ToUnits(amount string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	if d.IsNegative() {
		return 0, ErrInvalidAmount
	}

	units := d.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, ErrInvalidAmount
	}

	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, ErrInvalidAmount
	}

	return bi.Uint64(), nil
}

// FromUnits is the inverse of ToUnits.
func FromUnits(units uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -decimals)
}

// FormatUnits renders units with exactly the token precision.
func FormatUnits(units uint64, decimals int32) string {
	return FromUnits(units, decimals).StringFixed(decimals)
}

// FormatBigUnits is FormatUnits for amounts that may not fit in 64 bits.
func FormatBigUnits(units *big.Int, decimals int32) string {
	if units == nil {
		units = new(big.Int)
	}

	return decimal.NewFromBigInt(units, -decimals).StringFixed(decimals)
}
