package entity

import (
	"encoding/json"
	"math/big"

	"portfolio_aggregator/internal/pkg/utils"

	"github.com/shopspring/decimal"
)

// Balance item types reported by the upstream API.
const (
	BalanceTypeNFT = "nft"
)

// BalanceItem is one token (or NFT collection) held by the queried address.
type BalanceItem struct {
	ContractName         string
	ContractTickerSymbol string
	ContractAddress      string
	ContractDecimals     int32
	Type                 string
	RawBalance           *big.Int
	QuoteRate            decimal.NullDecimal
	Quote                decimal.Decimal
	NFTData              json.RawMessage
	// Excluded marks items partitioned out by type; they carry no converted balance.
	Excluded bool
}

// BalanceConverted is RawBalance scaled by 10^ContractDecimals, rounded to display precision.
// It is always derived, never stored.
func (b BalanceItem) BalanceConverted() decimal.Decimal {
	return utils.ConvertFixedPoint(b.RawBalance, b.ContractDecimals)
}

type balanceItemJSON struct {
	ContractName         string          `json:"contract_name"`
	ContractTickerSymbol string          `json:"contract_ticker_symbol"`
	ContractAddress      string          `json:"contract_address"`
	ContractDecimals     int32           `json:"contract_decimals"`
	Type                 string          `json:"type"`
	Balance              string          `json:"balance"`
	BalanceConverted     *string         `json:"balance_converted,omitempty"`
	QuoteRate            *json.Number    `json:"quote_rate"`
	Quote                json.Number     `json:"quote"`
	NFTData              json.RawMessage `json:"nft_data,omitempty"`
}

// MarshalJSON renders raw balances as strings (they overflow float64) and the converted balance
// with exactly four fractional digits.
func (b BalanceItem) MarshalJSON() ([]byte, error) {
	out := balanceItemJSON{
		ContractName:         b.ContractName,
		ContractTickerSymbol: b.ContractTickerSymbol,
		ContractAddress:      b.ContractAddress,
		ContractDecimals:     b.ContractDecimals,
		Type:                 b.Type,
		Balance:              rawString(b.RawBalance),
		Quote:                json.Number(b.Quote.String()),
		NFTData:              b.NFTData,
	}
	if !b.Excluded {
		converted := utils.FormatFixedPoint(b.BalanceConverted())
		out.BalanceConverted = &converted
	}
	if b.QuoteRate.Valid {
		rate := json.Number(b.QuoteRate.Decimal.String())
		out.QuoteRate = &rate
	}
	return json.Marshal(out)
}

func rawString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
