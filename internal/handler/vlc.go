package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/service"
)

// vlcContentType is the MIME type external players and mobile share-sheets
// recognize for one-shot playlist handoff.
const vlcContentType = "audio/x-mpegurl; charset=utf-8"

// VlcHandler serves the external-player playlist endpoint.
type VlcHandler struct {
	service *service.VlcService
	logger  *slog.Logger
}

// NewVlcHandler creates a VlcHandler.
func NewVlcHandler(svc *service.VlcService, logger *slog.Logger) *VlcHandler {
	return &VlcHandler{
		service: svc,
		logger:  logger.With("component", "vlc_handler"),
	}
}

// Handle serves GET /vlc-playlist?stream=...&sub=...&sub=... with a playlist
// pointing at one stream plus optional subtitle tracks.
func (h *VlcHandler) Handle(c echo.Context) error {
	playlist, err := h.service.Build(
		c.QueryParam("stream"),
		c.QueryParams()["sub"],
		serverOrigin(c),
	)
	if err != nil {
		return mapError(c, h.logger, err)
	}

	return c.Blob(http.StatusOK, vlcContentType, []byte(h.service.Render(playlist)))
}

// serverOrigin reconstructs the origin this server is reachable at, honoring
// forwarded-proto headers set by a fronting reverse proxy.
func serverOrigin(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}
