package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEndpointURL(t *testing.T) {
	key := entity.QueryKey{ChainID: "1", Address: "demo.eth", Currency: entity.CurrencyEUR}
	assert.Equal(t,
		"https://api.example.com/v1/1/address/demo.eth/balances_v2/?quote-currency=EUR",
		EndpointURL("https://api.example.com/", key, entity.EndpointBalances))
	assert.Equal(t,
		"https://api.example.com/v1/1/address/demo.eth/portfolio_v2/?quote-currency=EUR",
		EndpointURL("https://api.example.com", key, entity.EndpointPortfolio))
}

func TestFetchReturnsEveryStatusIndependently(t *testing.T) {
	var (
		mu      sync.Mutex
		seen    = map[string]string{}
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.URL.Query().Get("quote-currency")
		headers = r.Header.Clone()
		mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/balances_v2/"):
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data":{"items":[]}}`))
		case strings.HasSuffix(r.URL.Path, "/transactions_v2/"):
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewCovalentClient(CovalentOptions{BaseURL: srv.URL, APIKey: "ckey_test", RequestTimeout: 2 * time.Second}, zap.NewNop())
	bundle, err := c.Fetch(context.Background(), entity.QueryKey{ChainID: "1", Address: "0xabc", Currency: entity.CurrencyJPY})
	require.NoError(t, err)

	assert.Equal(t, entity.EndpointPortfolio, bundle.Portfolio.Endpoint)
	assert.Equal(t, http.StatusInternalServerError, bundle.Portfolio.StatusCode)
	assert.Equal(t, http.StatusBadRequest, bundle.Transactions.StatusCode)
	assert.Equal(t, http.StatusOK, bundle.Balances.StatusCode)
	assert.JSONEq(t, `{"data":{"items":[]}}`, string(bundle.Balances.Body))

	assert.Equal(t, map[string]string{
		"/v1/1/address/0xabc/portfolio_v2/":    "JPY",
		"/v1/1/address/0xabc/transactions_v2/": "JPY",
		"/v1/1/address/0xabc/balances_v2/":     "JPY",
	}, seen)

	user, pass, ok := (&http.Request{Header: headers}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "ckey_test", user)
	assert.Empty(t, pass)
	assert.Equal(t, DefaultUserAgent, headers.Get("User-Agent"))
}

func TestFetchIssuesCallsConcurrently(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(3)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		select {
		case <-allArrived:
			w.WriteHeader(http.StatusOK)
		case <-time.After(2 * time.Second):
			w.WriteHeader(http.StatusGatewayTimeout)
		}
	}))
	defer srv.Close()

	c := NewCovalentClient(CovalentOptions{BaseURL: srv.URL, RequestTimeout: 5 * time.Second}, zap.NewNop())
	bundle, err := c.Fetch(context.Background(), entity.NewQueryKey("1", "0xabc", "usd"))
	require.NoError(t, err)
	for _, r := range bundle.All() {
		assert.Equal(t, http.StatusOK, r.StatusCode, r.Endpoint)
	}
}

func TestFetchSlowCallDoesNotCancelOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/portfolio_v2/") {
			time.Sleep(500 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCovalentClient(CovalentOptions{BaseURL: srv.URL, RequestTimeout: 100 * time.Millisecond}, zap.NewNop())
	bundle, err := c.Fetch(context.Background(), entity.NewQueryKey("1", "0xabc", "usd"))
	require.NoError(t, err)

	assert.Equal(t, 0, bundle.Portfolio.StatusCode)
	assert.Error(t, bundle.Portfolio.Err)
	assert.Equal(t, http.StatusOK, bundle.Transactions.StatusCode)
	assert.Equal(t, http.StatusOK, bundle.Balances.StatusCode)
}

func TestFetchUnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c := NewCovalentClient(CovalentOptions{BaseURL: baseURL, RequestTimeout: time.Second}, zap.NewNop())
	bundle, err := c.Fetch(context.Background(), entity.NewQueryKey("1", "0xabc", "usd"))
	require.NoError(t, err)
	for _, r := range bundle.All() {
		assert.Equal(t, 0, r.StatusCode, r.Endpoint)
		assert.Error(t, r.Err, r.Endpoint)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCovalentClient(CovalentOptions{BaseURL: srv.URL, RequestsPerSecond: 1, Burst: 1}, zap.NewNop())
	_, err := c.Fetch(ctx, entity.NewQueryKey("1", "0xabc", "usd"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchKeepsSettledBundleWhenContextEndsLate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var arrived sync.WaitGroup
	arrived.Add(3)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		cancel()
		close(allArrived)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		<-allArrived
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewCovalentClient(CovalentOptions{BaseURL: srv.URL, RequestTimeout: 5 * time.Second}, zap.NewNop())
	bundle, err := c.Fetch(ctx, entity.NewQueryKey("1", "0xabc", "usd"))
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	for _, r := range bundle.All() {
		assert.Equal(t, http.StatusOK, r.StatusCode, r.Endpoint)
		assert.NoError(t, r.Err, r.Endpoint)
	}
}
