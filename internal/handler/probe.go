package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/service"
)

// ProbeHandler serves the manifest classification endpoint.
type ProbeHandler struct {
	proxy   *service.ProxyService
	service *service.ProbeService
	logger  *slog.Logger
}

// NewProbeHandler creates a ProbeHandler. It reuses the proxy service's
// request parsing so /hls-probe and /proxy share one query contract.
func NewProbeHandler(proxySvc *service.ProxyService, svc *service.ProbeService, logger *slog.Logger) *ProbeHandler {
	return &ProbeHandler{
		proxy:   proxySvc,
		service: svc,
		logger:  logger.With("component", "probe_handler"),
	}
}

// Handle serves GET /hls-probe?url=...&headers=... with the manifest's kind
// (master or media), its variants or segment shape, and liveness.
func (h *ProbeHandler) Handle(c echo.Context) error {
	pr, err := h.proxy.ParseRequest(
		http.MethodGet,
		c.QueryParam("url"),
		c.QueryParam("headers"),
		"",
	)
	if err != nil {
		return mapError(c, h.logger, err)
	}

	result, err := h.service.Probe(c.Request().Context(), pr)
	if err != nil {
		return mapError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, result)
}
