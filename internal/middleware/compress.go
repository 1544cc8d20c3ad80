package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/labstack/echo/v4"
)

// Compress returns a gzip middleware for textual endpoints (playlists, probe
// JSON, status). It must not wrap the media proxy routes: binary segment
// bodies are already compressed and must stream through with their upstream
// Content-Length and range headers intact.
func Compress() echo.MiddlewareFunc {
	return echo.WrapMiddleware(func(next http.Handler) http.Handler {
		return gzhttp.GzipHandler(next)
	})
}
