// Package handler wires HTTP endpoints onto the Echo router.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/metrics"
	"flixnest-proxy-go/internal/service"
)

// passthroughHeaders are the upstream headers echoed to the player. Range
// metadata must survive untouched for native seeking to work.
var passthroughHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// ProxyHandler serves the media proxy endpoint.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle serves GET and HEAD /proxy: fetch the target, shape the response by
// content class, and either send the transformed document or stream the
// binary body straight through.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	pr, err := h.service.ParseRequest(
		req.Method,
		c.QueryParam("url"),
		c.QueryParam("headers"),
		req.Header.Get("Range"),
	)
	if err != nil {
		return mapError(c, h.logger, err)
	}

	shaped, err := h.service.Process(req.Context(), pr)
	if err != nil {
		return mapError(c, h.logger, err)
	}

	header := c.Response().Header()
	for _, name := range passthroughHeaders {
		if v := shaped.Header.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	if shaped.CacheControl != "" {
		header.Set("Cache-Control", shaped.CacheControl)
	}
	if shaped.ContentType != "" {
		header.Set(echo.HeaderContentType, shaped.ContentType)
	}

	if req.Method == http.MethodHead {
		c.Response().WriteHeader(shaped.StatusCode)
		return nil
	}

	if shaped.Stream == nil {
		// Buffered classes replace the upstream body, so its length no
		// longer applies.
		header.Del("Content-Length")
		return c.Blob(shaped.StatusCode, shaped.ContentType, shaped.Body)
	}

	defer func() { _ = shaped.Stream.Close() }()

	c.Response().WriteHeader(shaped.StatusCode)

	// Stream the upstream body directly to the player. If the copy fails
	// mid-stream the status has already been sent and the player sees a
	// truncated body; that is inherent to streaming proxies, so we only log.
	n, err := io.Copy(c.Response(), shaped.Stream)
	if h.metrics != nil {
		h.metrics.BytesStreamed.Add(float64(n))
	}
	if err != nil {
		h.logger.Debug("streaming interrupted",
			"err", err,
			"bytes", n,
			"target", truncateTarget(c.QueryParam("url")),
		)
	}

	return nil
}
