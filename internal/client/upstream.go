// Package client provides the browser-impersonating upstream HTTP client.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"

	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/metrics"
	"flixnest-proxy-go/internal/model"
)

// UpstreamClient fetches media resources from arbitrary origins on behalf of
// the player, impersonating the request headers those origins gate on.
type UpstreamClient struct {
	httpClient *http.Client
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	limiters   *xsync.MapOf[string, ratelimit.Limiter]
}

// NewUpstreamClient creates an UpstreamClient with connection pooling.
// There is no whole-request timeout: large segment bodies stream for longer
// than any sane fixed deadline. A hung upstream is bounded instead by the
// response-header timeout, and the per-request context cancels the transfer
// when the player disconnects. The metrics parameter is optional; pass nil to
// disable upstream metrics recording.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		MaxIdleConns:          cfg.Proxy.IdleConnections,
		MaxIdleConnsPerHost:   cfg.Proxy.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.Proxy.TimeoutSeconds) * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &UpstreamClient{
		httpClient: &http.Client{Transport: transport},
		cfg:        cfg,
		logger:     logger.With("component", "upstream_client"),
		metrics:    m,
		limiters:   xsync.NewMapOf[string, ratelimit.Limiter](),
	}
}

// Fetch executes one upstream GET or HEAD and returns the raw response.
// Redirects are followed automatically. The caller is responsible for closing
// the response body; canceling ctx aborts an in-flight transfer.
func (c *UpstreamClient) Fetch(ctx context.Context, pr *model.ProxyRequest) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, pr.Method, pr.Target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = BuildHeaders(&c.cfg.Proxy, pr)

	c.pace(pr.Target.Hostname())

	c.logger.Debug("upstream request",
		"method", pr.Method,
		"host", pr.Target.Host,
		"range", pr.RangeHeader,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(pr.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// pace blocks until the per-host rate limiter admits another request.
// Limiters are created lazily per upstream host; pacing is disabled when no
// limit is configured.
func (c *UpstreamClient) pace(host string) {
	rps := c.cfg.Proxy.UpstreamRateLimit
	if rps <= 0 {
		return
	}
	limiter, _ := c.limiters.LoadOrCompute(host, func() ratelimit.Limiter {
		return ratelimit.New(rps)
	})
	limiter.Take()
}
