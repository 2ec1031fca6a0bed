package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// UpstreamClient issues the three upstream calls for one key.
type UpstreamClient interface {
	// Fetch returns every call's status and body independently of the others.
	// Non-2xx statuses are not errors; the returned error is reserved for a cancelled ctx.
	Fetch(ctx context.Context, key entity.QueryKey) (entity.UpstreamBundle, error)
}
