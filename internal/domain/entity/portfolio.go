package entity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PortfolioSeries is the valuation history of one contract, oldest point first.
type PortfolioSeries struct {
	ContractName         string           `json:"contract_name"`
	ContractTickerSymbol string           `json:"contract_ticker_symbol"`
	ContractAddress      string           `json:"contract_address"`
	Holdings             []PortfolioPoint `json:"holdings"`
}

// PortfolioPoint is a converted closing balance for one period.
type PortfolioPoint struct {
	Value       decimal.Decimal
	PeriodLabel string
}

func (p PortfolioPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value       json.Number `json:"value"`
		PeriodLabel string      `json:"period_label"`
	}{
		Value:       json.Number(p.Value.String()),
		PeriodLabel: p.PeriodLabel,
	})
}
