package entity

import (
	"net/http"
	"time"
)

// Endpoint names one of the three upstream resources queried per key.
type Endpoint string

const (
	EndpointPortfolio    Endpoint = "portfolio"
	EndpointTransactions Endpoint = "transactions"
	EndpointBalances     Endpoint = "balances"
)

// UpstreamResponse is the raw outcome of a single upstream call.
type UpstreamResponse struct {
	Endpoint   Endpoint
	URL        string
	StatusCode int // 0 when the request failed before a response arrived
	Body       []byte
	Err        error
	Duration   time.Duration
}

// OK reports a 200 answer.
func (r UpstreamResponse) OK() bool {
	return r.StatusCode == http.StatusOK
}

// UpstreamBundle holds the three responses for one key.
type UpstreamBundle struct {
	Portfolio    UpstreamResponse
	Transactions UpstreamResponse
	Balances     UpstreamResponse
}

// All returns the responses in a fixed order: portfolio, transactions, balances.
func (b UpstreamBundle) All() []UpstreamResponse {
	return []UpstreamResponse{b.Portfolio, b.Transactions, b.Balances}
}

// Statuses flattens the bundle for error reporting.
func (b UpstreamBundle) Statuses() []EndpointStatus {
	all := b.All()
	statuses := make([]EndpointStatus, 0, len(all))
	for _, r := range all {
		statuses = append(statuses, EndpointStatus{Endpoint: r.Endpoint, Status: r.StatusCode, Err: r.Err})
	}
	return statuses
}
