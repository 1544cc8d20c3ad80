package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/hls"
	"flixnest-proxy-go/internal/model"
)

// ProbeService fetches a manifest and classifies it so clients can pick a
// playback engine (native HLS vs. transcoding) before starting playback.
type ProbeService struct {
	cfg     *config.Config
	fetcher Fetcher
	guard   *TargetGuard
	logger  *slog.Logger
}

// NewProbeService creates a ProbeService.
func NewProbeService(cfg *config.Config, fetcher Fetcher, guard *TargetGuard, logger *slog.Logger) *ProbeService {
	return &ProbeService{
		cfg:     cfg,
		fetcher: fetcher,
		guard:   guard,
		logger:  logger.With("component", "probe_service"),
	}
}

// Probe fetches the target manifest and reports its kind and shape. The
// request must already be parsed and carries the same header-forwarding
// contract as the media proxy.
func (s *ProbeService) Probe(ctx context.Context, pr *model.ProxyRequest) (*hls.ProbeResult, error) {
	if err := s.guard.Validate(pr.Target); err != nil {
		return nil, err
	}

	resp, err := s.fetcher.Fetch(ctx, pr)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	body, err := readAllLimited(resp.Body, s.cfg.Proxy.MaxPlaylistBytes)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	normalized := hls.Normalize(string(body))
	result, err := hls.Probe(bytes.NewReader([]byte(normalized)))
	if err != nil {
		return nil, &InputError{Detail: "target is not an HLS manifest"}
	}
	return result, nil
}
