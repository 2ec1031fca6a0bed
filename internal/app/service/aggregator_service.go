package service

import (
	"context"
	"fmt"
	"net/http"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	covalent "portfolio_aggregator/internal/entity"
	"portfolio_aggregator/internal/pkg/metrics"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DefaultExcludeTypes are the balance types kept out of the balance list and the total.
var DefaultExcludeTypes = []string{entity.BalanceTypeNFT}

// BundleOutcome is the classification of the three upstream statuses.
type BundleOutcome int

const (
	OutcomeSuccess BundleOutcome = iota
	OutcomeNotFound
	OutcomePartialFailure
)

func (o BundleOutcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "partial_failure"
	}
}

// ClassifyBundle: all 400 is NotFound, all 200 is Success, anything else is PartialFailure.
func ClassifyBundle(bundle entity.UpstreamBundle) BundleOutcome {
	all := bundle.All()
	if lo.EveryBy(all, func(r entity.UpstreamResponse) bool { return r.StatusCode == http.StatusBadRequest }) {
		return OutcomeNotFound
	}
	if lo.EveryBy(all, entity.UpstreamResponse.OK) {
		return OutcomeSuccess
	}
	return OutcomePartialFailure
}

// AggregatorServiceImpl implements port.Aggregator.
type AggregatorServiceImpl struct {
	upstream     port.UpstreamClient
	excludeTypes []string
	logger       port.Logger
}

// NewAggregatorService creates a new instance of AggregatorServiceImpl.
func NewAggregatorService(upstream port.UpstreamClient, excludeTypes []string, l port.Logger) port.Aggregator {
	if len(excludeTypes) == 0 {
		excludeTypes = DefaultExcludeTypes
	}
	return &AggregatorServiceImpl{
		upstream:     upstream,
		excludeTypes: excludeTypes,
		logger:       l,
	}
}

// Fetch implements port.Aggregator. No partial data is ever returned: either all three calls
// succeeded and normalized, or the result is nil.
func (s *AggregatorServiceImpl) Fetch(ctx context.Context, key entity.QueryKey) (*entity.AggregateResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	bundle, err := s.upstream.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetching upstream data for %s: %w", key, err)
	}

	outcome := ClassifyBundle(bundle)
	switch outcome {
	case OutcomeNotFound:
		s.logger.Info("Address has no data upstream", "key", key.String())
		metrics.RecordAggregation(outcome.String())
		return nil, entity.ErrNotFound
	case OutcomePartialFailure:
		upErr := &entity.UpstreamError{Key: key, Statuses: bundle.Statuses()}
		s.logger.Warn("Upstream partial failure", "key", key.String(), "error", upErr.Error())
		metrics.RecordAggregation(outcome.String())
		return nil, upErr
	}

	result, err := s.normalize(key, bundle)
	if err != nil {
		s.logger.Error("Failed to normalize upstream payload", "key", key.String(), "error", err)
		metrics.RecordAggregation("malformed")
		return nil, err
	}

	s.logger.Debug("Aggregation completed",
		"key", key.String(),
		"balances", len(result.Balance),
		"nft", len(result.NFT),
		"transactions", len(result.Transactions),
		"portfolio", len(result.Portfolio))
	metrics.RecordAggregation(outcome.String())
	return result, nil
}

// normalize runs only after all three bodies are available, so the output does not depend
// on the order in which the calls completed.
func (s *AggregatorServiceImpl) normalize(key entity.QueryKey, bundle entity.UpstreamBundle) (*entity.AggregateResult, error) {
	txItems, err := DecodeItems[covalent.TransactionItem](entity.EndpointTransactions, bundle.Transactions.Body)
	if err != nil {
		return nil, err
	}
	transactions, err := NormalizeTransactions(txItems)
	if err != nil {
		return nil, err
	}

	portfolioItems, err := DecodeItems[covalent.PortfolioItem](entity.EndpointPortfolio, bundle.Portfolio.Body)
	if err != nil {
		return nil, err
	}
	portfolio, err := NormalizePortfolio(portfolioItems)
	if err != nil {
		return nil, err
	}

	balanceItems, err := DecodeItems[covalent.BalanceItem](entity.EndpointBalances, bundle.Balances.Body)
	if err != nil {
		return nil, err
	}

	result := &entity.AggregateResult{
		CurrencySymbol: key.Currency.Symbol(),
		Balance:        []entity.BalanceItem{},
		NFT:            []entity.BalanceItem{},
		AllBalance:     decimal.Zero,
		Transactions:   transactions,
		Portfolio:      portfolio,
	}
	if len(balanceItems) == 0 {
		return result, nil
	}

	result.Balance, result.NFT, result.AllBalance, err = NormalizeBalances(balanceItems, s.excludeTypes)
	if err != nil {
		return nil, err
	}
	return result, nil
}
