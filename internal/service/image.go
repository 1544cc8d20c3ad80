package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/metrics"
	"flixnest-proxy-go/internal/model"
)

// CachedImage is one processed image ready to serve.
type CachedImage struct {
	Data        []byte
	ContentType string
}

// imageCall deduplicates concurrent fetches of the same image variant.
type imageCall struct {
	once sync.Once
	img  *CachedImage
	err  error
}

// ImageService proxies poster and backdrop artwork with optional downscaling
// and an in-memory LRU cache. Artwork is immutable per URL, so cached entries
// never expire; the LRU bound caps memory instead.
type ImageService struct {
	cfg      *config.Config
	fetcher  Fetcher
	guard    *TargetGuard
	cache    *lru.Cache[string, *CachedImage]
	inflight *xsync.MapOf[string, *imageCall]
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewImageService creates an ImageService. The metrics parameter is optional.
func NewImageService(cfg *config.Config, fetcher Fetcher, guard *TargetGuard, logger *slog.Logger, m *metrics.Metrics) (*ImageService, error) {
	cache, err := lru.New[string, *CachedImage](cfg.Image.CacheEntries)
	if err != nil {
		return nil, fmt.Errorf("image cache: %w", err)
	}
	return &ImageService{
		cfg:      cfg,
		fetcher:  fetcher,
		guard:    guard,
		cache:    cache,
		inflight: xsync.NewMapOf[string, *imageCall](),
		logger:   logger.With("component", "image_service"),
		metrics:  m,
	}, nil
}

// Get returns the processed image for a target URL, fetching and transforming
// it on a cache miss. width 0 means original size; quality 0 means the
// configured default. Concurrent misses for the same variant share one fetch.
func (s *ImageService) Get(ctx context.Context, rawTarget string, width, quality int) (*CachedImage, error) {
	if rawTarget == "" {
		return nil, &InputError{Detail: "missing url parameter"}
	}
	target, err := url.Parse(rawTarget)
	if err != nil || !target.IsAbs() || target.Host == "" {
		return nil, &InputError{Detail: fmt.Sprintf("invalid target URL %q", truncate(rawTarget, 200))}
	}
	if err := s.guard.Validate(target); err != nil {
		return nil, err
	}

	if quality <= 0 {
		quality = s.cfg.Image.DefaultQuality
	}
	key := fmt.Sprintf("%s|w=%d|q=%d", target.String(), width, quality)

	if img, ok := s.cache.Get(key); ok {
		if s.metrics != nil {
			s.metrics.ImageCacheHits.Inc()
		}
		return img, nil
	}
	if s.metrics != nil {
		s.metrics.ImageCacheMisses.Inc()
	}

	call, _ := s.inflight.LoadOrCompute(key, func() *imageCall {
		return &imageCall{}
	})
	call.once.Do(func() {
		defer s.inflight.Delete(key)
		call.img, call.err = s.fetchAndProcess(ctx, target, width, quality)
		if call.err == nil {
			s.cache.Add(key, call.img)
		}
	})
	return call.img, call.err
}

// fetchAndProcess performs the upstream fetch and, when the payload decodes
// as an image, downscales and re-encodes it. Payloads that do not decode
// (SVG, exotic formats) pass through unmodified.
func (s *ImageService) fetchAndProcess(ctx context.Context, target *url.URL, width, quality int) (*CachedImage, error) {
	resp, err := s.fetcher.Fetch(ctx, &model.ProxyRequest{
		Method: http.MethodGet,
		Target: target,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	data, err := s.readBoundedImage(resp)
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Debug("serving undecodable image verbatim",
			"host", target.Host,
			"content_type", contentType,
		)
		return &CachedImage{Data: data, ContentType: contentType}, nil
	}

	if width > 0 && width < src.Bounds().Dx() {
		src = downscale(src, width)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &CachedImage{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}

// readBoundedImage buffers an image body, capped well above any sane poster.
func (s *ImageService) readBoundedImage(resp *model.UpstreamResponse) ([]byte, error) {
	const maxImageBytes = 20 * 1024 * 1024
	data, err := readAllLimited(resp.Body, maxImageBytes)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return data, nil
}

// downscale resizes to the given width preserving aspect ratio, using
// Catmull-Rom interpolation for quality at poster sizes.
func downscale(src image.Image, width int) image.Image {
	bounds := src.Bounds()
	height := bounds.Dy() * width / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
