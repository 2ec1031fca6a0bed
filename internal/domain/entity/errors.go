package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Aggregation outcomes other than success.
var (
	// ErrNotFound means every upstream call answered 400: the address has no data for the key.
	// Callers render it as an empty balance, not as a failure.
	ErrNotFound = errors.New("address has no on-chain data")

	// ErrPartialFailure means at least one upstream call did not succeed. No partial data is returned.
	ErrPartialFailure = errors.New("upstream partial failure")

	// ErrMalformedPayload is returned when an upstream body does not have the expected shape.
	ErrMalformedPayload = errors.New("malformed upstream payload")

	// ErrInvalidQuery is returned for keys that fail validation before any upstream call.
	ErrInvalidQuery = errors.New("invalid query")
)

// UpstreamError reports the per-endpoint statuses behind a partial failure.
type UpstreamError struct {
	Key      QueryKey
	Statuses []EndpointStatus
}

// EndpointStatus is one endpoint's outcome. Status 0 means the call never got a response.
type EndpointStatus struct {
	Endpoint Endpoint
	Status   int
	Err      error
}

func (e *UpstreamError) Error() string {
	parts := make([]string, 0, len(e.Statuses))
	for _, s := range e.Statuses {
		if s.Err != nil {
			parts = append(parts, fmt.Sprintf("%s=%d (%v)", s.Endpoint, s.Status, s.Err))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", s.Endpoint, s.Status))
	}
	return fmt.Sprintf("upstream partial failure for %s: %s", e.Key, strings.Join(parts, ", "))
}

func (e *UpstreamError) Unwrap() error {
	return ErrPartialFailure
}
