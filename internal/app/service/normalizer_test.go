package service

import (
	"testing"

	"portfolio_aggregator/internal/domain/entity"
	covalent "portfolio_aggregator/internal/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decimalsPtr(v int32) *int32 { return &v }

func TestDecodeItems(t *testing.T) {
	t.Run("items present", func(t *testing.T) {
		items, err := DecodeItems[covalent.TransactionItem](entity.EndpointTransactions,
			[]byte(`{"data":{"items":[{"tx_hash":"0x1"},{"tx_hash":"0x2"}]},"error":false}`))
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("null items is empty", func(t *testing.T) {
		items, err := DecodeItems[covalent.BalanceItem](entity.EndpointBalances, []byte(`{"data":{"items":null}}`))
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("missing data object", func(t *testing.T) {
		_, err := DecodeItems[covalent.BalanceItem](entity.EndpointBalances, []byte(`{"error":false}`))
		assert.ErrorIs(t, err, entity.ErrMalformedPayload)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeItems[covalent.BalanceItem](entity.EndpointBalances, []byte(`<html>`))
		assert.ErrorIs(t, err, entity.ErrMalformedPayload)
	})
}

func TestNormalizeBalances(t *testing.T) {
	items := []covalent.BalanceItem{
		{ContractName: "USD Coin", ContractAddress: "0xa0b8", ContractDecimals: decimalsPtr(6), Type: "cryptocurrency", Balance: "2000000", Quote: "50.0", QuoteRate: "25"},
		{ContractName: "Ether", ContractAddress: "0xeeee", ContractDecimals: decimalsPtr(18), Type: "dust", Balance: "1000000000000000000", Quote: "0.25"},
		{ContractName: "Punks", ContractAddress: "0xb47e", Type: "nft", Balance: "", Quote: "999", NFTData: []byte(`[{"token_id":"1"}]`)},
		{ContractName: "No price", ContractAddress: "0x1111", ContractDecimals: decimalsPtr(0), Type: "cryptocurrency", Balance: "7"},
	}

	included, excluded, all, err := NormalizeBalances(items, []string{"nft"})
	require.NoError(t, err)

	require.Len(t, included, 3)
	require.Len(t, excluded, 1)
	assert.Equal(t, "Punks", excluded[0].ContractName)
	assert.True(t, all.Equal(decimal.RequireFromString("50.25")), all.String())

	assert.Equal(t, "2.0000", included[0].BalanceConverted().StringFixed(4))
	assert.Equal(t, "1.0000", included[1].BalanceConverted().StringFixed(4))
	assert.Equal(t, "7.0000", included[2].BalanceConverted().StringFixed(4))
	assert.True(t, included[0].QuoteRate.Valid)
	assert.False(t, included[2].QuoteRate.Valid)
	assert.True(t, included[2].Quote.IsZero())
}

func TestNormalizeBalancesNFTNeverCounted(t *testing.T) {
	items := []covalent.BalanceItem{
		{Type: "nft", Balance: "1", ContractDecimals: decimalsPtr(0), Quote: "1000"},
		{Type: "nft", Balance: "3", ContractDecimals: decimalsPtr(0), Quote: "5"},
	}
	included, excluded, all, err := NormalizeBalances(items, []string{"nft"})
	require.NoError(t, err)
	assert.Empty(t, included)
	require.Len(t, excluded, 2)
	assert.True(t, excluded[0].Excluded)
	assert.True(t, excluded[1].Excluded)
	assert.True(t, all.IsZero())
}

func TestNormalizeBalancesMalformed(t *testing.T) {
	tests := []struct {
		name string
		item covalent.BalanceItem
	}{
		{name: "non integer balance", item: covalent.BalanceItem{Type: "cryptocurrency", ContractDecimals: decimalsPtr(6), Balance: "1.5"}},
		{name: "missing balance", item: covalent.BalanceItem{Type: "cryptocurrency", ContractDecimals: decimalsPtr(6)}},
		{name: "missing decimals", item: covalent.BalanceItem{Type: "cryptocurrency", Balance: "1"}},
		{name: "negative decimals", item: covalent.BalanceItem{Type: "cryptocurrency", ContractDecimals: decimalsPtr(-1), Balance: "1"}},
		{name: "bad quote", item: covalent.BalanceItem{Type: "cryptocurrency", ContractDecimals: decimalsPtr(6), Balance: "1", Quote: "abc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := NormalizeBalances([]covalent.BalanceItem{tt.item}, []string{"nft"})
			assert.ErrorIs(t, err, entity.ErrMalformedPayload)
		})
	}
}

func TestNormalizeTransactionsKeepsFirstOccurrence(t *testing.T) {
	items := []covalent.TransactionItem{
		{TxHash: "0xa", FromAddress: "first-a"},
		{TxHash: "0xb", FromAddress: "first-b"},
		{TxHash: "0xa", FromAddress: "second-a"},
		{TxHash: "0xc", FromAddress: "first-c"},
		{TxHash: "0xb", FromAddress: "second-b"},
	}

	records, err := NormalizeTransactions(items)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"0xa", "0xb", "0xc"}, []string{records[0].TxHash, records[1].TxHash, records[2].TxHash})
	assert.Equal(t, "first-a", records[0].FromAddress)
	assert.Equal(t, "first-b", records[1].FromAddress)
}

func TestNormalizeTransactionsLogEvents(t *testing.T) {
	items := []covalent.TransactionItem{{
		TxHash: "0xa",
		Value:  "15",
		LogEvents: []covalent.LogEvent{
			{RawLogTopics: []string{"0xddf2"}, Decoded: &covalent.DecodedParams{Name: "Transfer"}},
			{RawLogTopics: []string{"0x8c5b"}},
		},
	}}

	records, err := NormalizeTransactions(items)
	require.NoError(t, err)
	require.Len(t, records[0].LogEvents, 2)
	assert.Equal(t, "Transfer", records[0].LogEvents[0].Label())
	assert.Equal(t, "0x8c5b", records[0].LogEvents[1].Label())
	assert.Equal(t, "15", records[0].Value)
}

func TestNormalizeTransactionsMissingHash(t *testing.T) {
	_, err := NormalizeTransactions([]covalent.TransactionItem{{TxHash: "0xa"}, {}})
	assert.ErrorIs(t, err, entity.ErrMalformedPayload)
}

func TestNormalizePortfolioReversesAndConverts(t *testing.T) {
	items, err := DecodeItems[covalent.PortfolioItem](entity.EndpointPortfolio, []byte(`{"data":{"items":[
		{"contract_name":"USD Coin","contract_decimals":6,"holdings":[
			{"timestamp":"2024-03-03T00:00:00Z","close":{"balance":"3000000"}},
			{"timestamp":"2024-03-02T00:00:00Z","close":{"balance":"2500000"}},
			{"timestamp":"2024-03-01T00:00:00Z","close":{"balance":"1234567"}}
		]}
	]}}`))
	require.NoError(t, err)

	series, err := NormalizePortfolio(items)
	require.NoError(t, err)
	require.Len(t, series, 1)

	holdings := series[0].Holdings
	require.Len(t, holdings, 3)
	assert.Equal(t, "2024-03-01", holdings[0].PeriodLabel)
	assert.Equal(t, "2024-03-03", holdings[2].PeriodLabel)
	assert.Equal(t, "1.2346", holdings[0].Value.StringFixed(4))
	assert.Equal(t, "2.5000", holdings[1].Value.StringFixed(4))
	assert.Equal(t, "3.0000", holdings[2].Value.StringFixed(4))
}

func TestNormalizePortfolioMalformed(t *testing.T) {
	_, err := NormalizePortfolio([]covalent.PortfolioItem{{ContractName: "x"}})
	assert.ErrorIs(t, err, entity.ErrMalformedPayload)

	_, err = NormalizePortfolio([]covalent.PortfolioItem{{
		ContractDecimals: decimalsPtr(6),
		Holdings:         []covalent.PortfolioHolding{{Close: covalent.HoldingPoint{Balance: "not-a-number"}}},
	}})
	assert.ErrorIs(t, err, entity.ErrMalformedPayload)
}
