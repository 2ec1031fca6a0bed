package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/metrics"

	"github.com/samber/lo"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when no user agent is configured; the upstream rejects some bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// CovalentOptions configures the upstream client.
type CovalentOptions struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	// RequestsPerSecond <= 0 disables client-side pacing.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// covalentClientImpl is the fasthttp implementation of port.UpstreamClient.
type covalentClientImpl struct {
	client    *fasthttp.Client
	baseURL   string
	apiKey    string
	timeout   time.Duration
	userAgent string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewCovalentClient creates a new instance of covalentClientImpl.
func NewCovalentClient(opts CovalentOptions, logger *zap.Logger) port.UpstreamClient {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 3
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &covalentClientImpl{
		client: &fasthttp.Client{
			Name:                     userAgent,
			MaxIdleConnDuration:      time.Minute,
			NoDefaultUserAgentHeader: true,
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		timeout:   timeout,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger.Named("CovalentClient"),
	}
}

// EndpointURL builds the upstream URL of one endpoint for key.
func EndpointURL(baseURL string, key entity.QueryKey, endpoint entity.Endpoint) string {
	return fmt.Sprintf("%s/v1/%s/address/%s/%s_v2/?quote-currency=%s",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(key.ChainID),
		url.PathEscape(key.Address),
		endpoint,
		key.Currency,
	)
}

// Fetch implements port.UpstreamClient. The three calls run concurrently; each is bounded by its
// own timeout and none cancels the others.
func (c *covalentClientImpl) Fetch(ctx context.Context, key entity.QueryKey) (entity.UpstreamBundle, error) {
	bundle := entity.UpstreamBundle{}
	targets := []struct {
		endpoint entity.Endpoint
		dst      *entity.UpstreamResponse
	}{
		{entity.EndpointPortfolio, &bundle.Portfolio},
		{entity.EndpointTransactions, &bundle.Transactions},
		{entity.EndpointBalances, &bundle.Balances},
	}

	var g errgroup.Group
	for _, t := range targets {
		t := t
		g.Go(func() error {
			*t.dst = c.call(ctx, t.endpoint, EndpointURL(c.baseURL, key, t.endpoint))
			return nil
		})
	}
	_ = g.Wait()

	// a bundle that settled completely is returned even if ctx ended afterwards
	if err := ctx.Err(); err != nil && lo.SomeBy(bundle.All(), func(r entity.UpstreamResponse) bool { return r.Err != nil }) {
		return bundle, err
	}
	return bundle, nil
}

func (c *covalentClientImpl) call(ctx context.Context, endpoint entity.Endpoint, requestURL string) entity.UpstreamResponse {
	res := entity.UpstreamResponse{Endpoint: endpoint, URL: requestURL}
	start := time.Now()
	defer func() {
		metrics.RecordUpstreamCall(string(endpoint), res.StatusCode, time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		res.Err = fmt.Errorf("waiting for rate limiter: %w", err)
		res.Duration = time.Since(start)
		c.logger.Warn("Upstream request not sent", zap.String("url", requestURL), zap.Error(err))
		return res
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		res.Err = context.DeadlineExceeded
		res.Duration = time.Since(start)
		return res
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	req.Header.SetUserAgent(c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(c.apiKey+":")))
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	c.logger.Info("Upstream request", zap.String("method", fasthttp.MethodGet), zap.String("url", requestURL))

	if err := c.client.DoTimeout(req, resp, timeout); err != nil {
		res.Err = err
		res.Duration = time.Since(start)
		c.logger.Error("Failed to execute upstream request",
			zap.String("method", fasthttp.MethodGet),
			zap.String("url", requestURL),
			zap.Duration("timeout", timeout),
			zap.Error(err))
		return res
	}

	res.StatusCode = resp.StatusCode()
	// тело принадлежит resp и освобождается вместе с ним
	res.Body = append([]byte(nil), resp.Body()...)
	res.Duration = time.Since(start)

	c.logger.Info("Upstream response",
		zap.String("method", fasthttp.MethodGet),
		zap.String("url", requestURL),
		zap.Int("statusCode", res.StatusCode),
		zap.Duration("took", res.Duration))
	if res.StatusCode != fasthttp.StatusOK && res.StatusCode != fasthttp.StatusBadRequest {
		c.logger.Warn("Upstream returned unexpected status",
			zap.String("url", requestURL),
			zap.Int("statusCode", res.StatusCode),
			zap.ByteString("responseBody", truncate(res.Body, 512)))
	}
	return res
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
