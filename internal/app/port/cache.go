package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// RefreshCache serves aggregations with stale-while-revalidate semantics.
type RefreshCache interface {
	Get(ctx context.Context, key entity.QueryKey) (*entity.AggregateResult, entity.CacheStatus, error)
	Invalidate(key entity.QueryKey)
	Len() int
	// Close stops scheduling background refreshes and waits for the ones in flight.
	Close()
}
