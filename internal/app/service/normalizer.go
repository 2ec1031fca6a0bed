package service

import (
	"fmt"
	"math/big"

	"portfolio_aggregator/internal/domain/entity"
	covalent "portfolio_aggregator/internal/entity"
	"portfolio_aggregator/internal/pkg/utils"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// periodLabelLayout formats a holding timestamp into its period label.
const periodLabelLayout = "2006-01-02"

// DecodeItems unwraps the data.items list of an upstream body.
// A body without a data object is malformed; null or absent items decode to an empty list.
func DecodeItems[T any](endpoint entity.Endpoint, body []byte) ([]T, error) {
	var env covalent.Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", entity.ErrMalformedPayload, endpoint, err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: %s: missing data object", entity.ErrMalformedPayload, endpoint)
	}
	if env.Data.Items == nil {
		return []T{}, nil
	}
	return env.Data.Items, nil
}

// NormalizeBalances partitions items by type. Items whose type is in excludeTypes are returned
// separately and never contribute to allBalance, the sum of quotes over the included items.
func NormalizeBalances(items []covalent.BalanceItem, excludeTypes []string) (included, excluded []entity.BalanceItem, allBalance decimal.Decimal, err error) {
	included = make([]entity.BalanceItem, 0, len(items))
	excluded = make([]entity.BalanceItem, 0)
	allBalance = decimal.Zero

	for i, item := range items {
		isExcluded := lo.Contains(excludeTypes, item.Type)

		b, convErr := toBalanceItem(item, !isExcluded)
		if convErr != nil {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: balances item %d (%s): %v", entity.ErrMalformedPayload, i, item.ContractAddress, convErr)
		}

		if isExcluded {
			b.Excluded = true
			excluded = append(excluded, b)
			continue
		}
		allBalance = allBalance.Add(b.Quote)
		included = append(included, b)
	}
	return included, excluded, allBalance, nil
}

// toBalanceItem converts a raw item. In strict mode the balance must be an integer and the
// decimals present; excluded items (NFT collections) often carry neither.
func toBalanceItem(item covalent.BalanceItem, strict bool) (entity.BalanceItem, error) {
	b := entity.BalanceItem{
		ContractName:         item.ContractName,
		ContractTickerSymbol: item.ContractTickerSymbol,
		ContractAddress:      item.ContractAddress,
		Type:                 item.Type,
		NFTData:              item.NFTData,
	}

	switch {
	case item.ContractDecimals != nil && *item.ContractDecimals < 0:
		return b, fmt.Errorf("negative contract_decimals %d", *item.ContractDecimals)
	case item.ContractDecimals != nil:
		b.ContractDecimals = *item.ContractDecimals
	case strict:
		return b, fmt.Errorf("missing contract_decimals")
	}

	raw, err := utils.ParseRawAmount(string(item.Balance))
	switch {
	case err == nil:
		b.RawBalance = raw
	case strict:
		return b, fmt.Errorf("balance: %w", err)
	default:
		b.RawBalance = new(big.Int)
	}

	if b.Quote, err = parseOptionalDecimal(item.Quote); err != nil {
		return b, fmt.Errorf("quote: %w", err)
	}
	if item.QuoteRate != "" {
		rate, err := decimal.NewFromString(string(item.QuoteRate))
		if err != nil {
			return b, fmt.Errorf("quote_rate: %w", err)
		}
		b.QuoteRate = decimal.NewNullDecimal(rate)
	}
	return b, nil
}

// parseOptionalDecimal treats a null quote as zero: the upstream has no price for the token.
func parseOptionalDecimal(v covalent.FlexString) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(v))
}

// NormalizeTransactions keeps the first record per tx_hash, preserving upstream order.
func NormalizeTransactions(items []covalent.TransactionItem) ([]entity.TransactionRecord, error) {
	for i, item := range items {
		if item.TxHash == "" {
			return nil, fmt.Errorf("%w: transactions item %d: missing tx_hash", entity.ErrMalformedPayload, i)
		}
	}

	unique := lo.UniqBy(items, func(item covalent.TransactionItem) string {
		return item.TxHash
	})

	return lo.Map(unique, func(item covalent.TransactionItem, _ int) entity.TransactionRecord {
		return entity.TransactionRecord{
			TxHash:        item.TxHash,
			BlockSignedAt: item.BlockSignedAt,
			FromAddress:   item.FromAddress,
			ToAddress:     item.ToAddress,
			Successful:    item.Successful,
			Value:         string(item.Value),
			LogEvents:     lo.Map(item.LogEvents, toLogEvent),
		}
	}), nil
}

func toLogEvent(ev covalent.LogEvent, _ int) entity.LogEvent {
	out := entity.LogEvent{RawTopics: ev.RawLogTopics}
	if ev.Decoded != nil {
		out.DecodedName = ev.Decoded.Name
	}
	return out
}

// NormalizePortfolio converts every closing balance with the contract's decimals and returns each
// series oldest first (the upstream delivers newest first).
func NormalizePortfolio(items []covalent.PortfolioItem) ([]entity.PortfolioSeries, error) {
	series := make([]entity.PortfolioSeries, 0, len(items))
	for i, item := range items {
		if item.ContractDecimals == nil || *item.ContractDecimals < 0 {
			return nil, fmt.Errorf("%w: portfolio item %d (%s): missing or negative contract_decimals", entity.ErrMalformedPayload, i, item.ContractAddress)
		}
		decimals := *item.ContractDecimals

		points := make([]entity.PortfolioPoint, len(item.Holdings))
		for j, h := range item.Holdings {
			raw, err := utils.ParseRawAmount(string(h.Close.Balance))
			if err != nil {
				return nil, fmt.Errorf("%w: portfolio item %d holding %d: %v", entity.ErrMalformedPayload, i, j, err)
			}
			// развернуть: последний элемент upstream становится первым
			points[len(points)-1-j] = entity.PortfolioPoint{
				Value:       utils.ConvertFixedPoint(raw, decimals),
				PeriodLabel: h.Timestamp.UTC().Format(periodLabelLayout),
			}
		}

		series = append(series, entity.PortfolioSeries{
			ContractName:         item.ContractName,
			ContractTickerSymbol: item.ContractTickerSymbol,
			ContractAddress:      item.ContractAddress,
			Holdings:             points,
		})
	}
	return series, nil
}
