package entity

import "time"

// CacheStatus tells the caller how a cached lookup was served.
type CacheStatus string

const (
	CacheHit   CacheStatus = "hit"
	CacheMiss  CacheStatus = "miss"
	CacheStale CacheStatus = "stale"
)

// CacheEntry is one stored aggregation. Entries are replaced, never updated in place.
type CacheEntry struct {
	Key       QueryKey
	Value     *AggregateResult
	FetchedAt time.Time
}

// Age returns how long ago the entry was fetched relative to now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}
