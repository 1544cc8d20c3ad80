package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/service"
)

// ImageHandler serves the artwork proxy endpoint.
type ImageHandler struct {
	cfg     *config.Config
	service *service.ImageService
	logger  *slog.Logger
}

// NewImageHandler creates an ImageHandler.
func NewImageHandler(cfg *config.Config, svc *service.ImageService, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{
		cfg:     cfg,
		service: svc,
		logger:  logger.With("component", "image_handler"),
	}
}

// Handle serves GET /image-proxy?url=...&w=...&q=...: fetch the artwork,
// optionally downscale to w pixels wide, re-encode at quality q. Invalid
// w/q values fall back to defaults; artwork is treated as immutable per URL.
func (h *ImageHandler) Handle(c echo.Context) error {
	width, _ := strconv.Atoi(c.QueryParam("w"))
	quality, _ := strconv.Atoi(c.QueryParam("q"))
	if width < 0 {
		width = 0
	}
	if quality < 0 || quality > 100 {
		quality = 0
	}

	ctx, cancel := context.WithTimeout(
		c.Request().Context(),
		time.Duration(h.cfg.Image.TimeoutSeconds)*time.Second,
	)
	defer cancel()

	img, err := h.service.Get(ctx, c.QueryParam("url"), width, quality)
	if err != nil {
		return mapError(c, h.logger, err)
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Blob(http.StatusOK, img.ContentType, img.Data)
}
