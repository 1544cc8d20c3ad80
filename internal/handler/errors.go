package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/service"
)

// jsonError writes the uniform JSON error body.
func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// mapError translates service and transport errors into HTTP responses.
// Input and blocked-target errors are the caller's fault (400); an upstream
// non-2xx status passes through unchanged; timeouts, disconnects and network
// failures map to gateway statuses; everything else is a generic 500 with
// details kept server-side.
func mapError(c echo.Context, logger *slog.Logger, err error) error {
	var inputErr *service.InputError
	if errors.As(err, &inputErr) {
		return jsonError(c, http.StatusBadRequest, inputErr.Detail)
	}

	var blockedErr *service.BlockedTargetError
	if errors.As(err, &blockedErr) {
		return jsonError(c, http.StatusBadRequest, blockedErr.Detail)
	}

	var statusErr *service.UpstreamStatusError
	if errors.As(err, &statusErr) {
		return jsonError(c, statusErr.StatusCode, statusErr.Error())
	}

	logger.Error("request failed",
		"err", err,
		"path", c.Request().URL.Path,
		"target", truncateTarget(c.QueryParam("url")),
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return jsonError(c, http.StatusGatewayTimeout, "upstream request timed out")
	}

	if errors.Is(err, context.Canceled) {
		return jsonError(c, http.StatusBadGateway, "client disconnected")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return jsonError(c, http.StatusBadGateway, "upstream host unreachable")
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return jsonError(c, http.StatusGatewayTimeout, "upstream request timed out")
		}
		return jsonError(c, http.StatusBadGateway, "upstream connection failed")
	}

	return jsonError(c, http.StatusInternalServerError, "internal proxy error")
}

// truncateTarget shortens attacker-influenced target URLs before logging.
func truncateTarget(raw string) string {
	const max = 200
	if len(raw) <= max {
		return raw
	}
	return raw[:max] + "…"
}
