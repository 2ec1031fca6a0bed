package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// Aggregator merges the upstream answers for one key.
type Aggregator interface {
	// Fetch returns the merged result, entity.ErrNotFound when the address has no data,
	// or an error wrapping entity.ErrPartialFailure / entity.ErrMalformedPayload.
	Fetch(ctx context.Context, key entity.QueryKey) (*entity.AggregateResult, error)
}
