package entity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AggregateResult is the merged answer for one QueryKey. Once stored in the cache it is
// never mutated; a refresh replaces it wholesale.
type AggregateResult struct {
	CurrencySymbol string
	Balance        []BalanceItem
	NFT            []BalanceItem
	AllBalance     decimal.Decimal
	Transactions   []TransactionRecord
	Portfolio      []PortfolioSeries
}

// MarshalJSON always emits arrays (never null) so clients can iterate without checks.
func (r AggregateResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Currency     string              `json:"currency"`
		Balance      []BalanceItem       `json:"balance"`
		NFT          []BalanceItem       `json:"nft"`
		AllBalance   json.Number         `json:"all_balance"`
		Transactions []TransactionRecord `json:"transactions"`
		Portfolio    []PortfolioSeries   `json:"portfolio"`
	}{
		Currency:     r.CurrencySymbol,
		Balance:      nonNil(r.Balance),
		NFT:          nonNil(r.NFT),
		AllBalance:   json.Number(r.AllBalance.String()),
		Transactions: nonNil(r.Transactions),
		Portfolio:    nonNil(r.Portfolio),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
