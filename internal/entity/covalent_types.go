package entity

import (
	"bytes"
	"encoding/json"
	"time"
)

// Envelope is the common wrapper of every Covalent v1 response.
type Envelope[T any] struct {
	Data         *EnvelopeData[T] `json:"data"`
	Error        bool             `json:"error"`
	ErrorMessage *string          `json:"error_message"`
	ErrorCode    *int             `json:"error_code"`
}

// EnvelopeData holds the item list. Items may be null or absent for empty accounts.
type EnvelopeData[T any] struct {
	Address       string `json:"address"`
	QuoteCurrency string `json:"quote_currency"`
	ChainID       int64  `json:"chain_id"`
	Items         []T    `json:"items"`
}

// BalanceItem is one entry of balances_v2.
type BalanceItem struct {
	ContractName         string          `json:"contract_name"`
	ContractTickerSymbol string          `json:"contract_ticker_symbol"`
	ContractAddress      string          `json:"contract_address"`
	ContractDecimals     *int32          `json:"contract_decimals"`
	Type                 string          `json:"type"`
	Balance              FlexString      `json:"balance"`
	QuoteRate            FlexString      `json:"quote_rate"`
	Quote                FlexString      `json:"quote"`
	NFTData              json.RawMessage `json:"nft_data"`
}

// TransactionItem is one entry of transactions_v2.
type TransactionItem struct {
	BlockSignedAt time.Time  `json:"block_signed_at"`
	TxHash        string     `json:"tx_hash"`
	Successful    bool       `json:"successful"`
	FromAddress   string     `json:"from_address"`
	ToAddress     string     `json:"to_address"`
	Value         FlexString `json:"value"`
	LogEvents     []LogEvent `json:"log_events"`
}

// LogEvent is an event emitted by a transaction.
type LogEvent struct {
	RawLogTopics []string       `json:"raw_log_topics"`
	Decoded      *DecodedParams `json:"decoded"`
}

// DecodedParams is present only when the upstream could decode the event ABI.
type DecodedParams struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

// PortfolioItem is one contract entry of portfolio_v2.
type PortfolioItem struct {
	ContractName         string             `json:"contract_name"`
	ContractTickerSymbol string             `json:"contract_ticker_symbol"`
	ContractAddress      string             `json:"contract_address"`
	ContractDecimals     *int32             `json:"contract_decimals"`
	Holdings             []PortfolioHolding `json:"holdings"`
}

// PortfolioHolding is one period of a portfolio item, newest first as delivered.
type PortfolioHolding struct {
	Timestamp time.Time    `json:"timestamp"`
	Close     HoldingPoint `json:"close"`
}

// HoldingPoint carries the raw balance and its quote at the period boundary.
type HoldingPoint struct {
	Balance FlexString `json:"balance"`
	Quote   FlexString `json:"quote"`
}

// FlexString accepts a JSON string, a bare number or null (empty).
// Covalent sends big integers as strings and quotes as numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
