package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/middleware"
)

// RegisterRoutes wires all route handlers onto the Echo instance. CORS covers
// every player-facing endpoint; gzip covers only textual endpoints, because
// binary media must stream through with upstream length headers intact.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler, image *ImageHandler, vlc *VlcHandler, probe *ProbeHandler, health *HealthHandler) {
	cors := middleware.CORS()
	gz := middleware.Compress()

	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status, gz)

	e.GET("/proxy", proxy.Handle, cors)
	e.HEAD("/proxy", proxy.Handle, cors)
	e.OPTIONS("/proxy", preflight, cors)

	e.GET("/image-proxy", image.Handle, cors)
	e.OPTIONS("/image-proxy", preflight, cors)

	e.GET("/vlc-playlist", vlc.Handle, cors, gz)
	e.OPTIONS("/vlc-playlist", preflight, cors)

	e.GET("/hls-probe", probe.Handle, cors, gz)
	e.OPTIONS("/hls-probe", preflight, cors)
}

// preflight is never reached: the CORS middleware answers OPTIONS itself.
// Registering it gives the router a route to match.
func preflight(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
