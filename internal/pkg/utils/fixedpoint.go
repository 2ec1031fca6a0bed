package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayPrecision is the number of fractional digits every converted token amount is rounded to.
const DisplayPrecision = 4

// ParseRawAmount parses an on-chain integer amount as delivered by the upstream API (base 10).
func ParseRawAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not an integer", raw)
	}
	return v, nil
}

// ConvertFixedPoint returns amount / 10^decimals rounded half away from zero to DisplayPrecision digits.
// Ties are decided on the exact value, so 0.00015 becomes 0.0002.
// Example: amount=2000000, decimals=6 => 2.0000
func ConvertFixedPoint(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals).Round(DisplayPrecision)
}

// FormatFixedPoint renders d with exactly DisplayPrecision fractional digits ("2.0000").
func FormatFixedPoint(d decimal.Decimal) string {
	return d.StringFixed(DisplayPrecision)
}
