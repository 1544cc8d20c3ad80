package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/hls"
	"flixnest-proxy-go/internal/metrics"
	"flixnest-proxy-go/internal/model"
)

// Fetcher executes a single upstream request.
type Fetcher interface {
	Fetch(ctx context.Context, pr *model.ProxyRequest) (*model.UpstreamResponse, error)
}

// InputError reports an invalid inbound request (missing or malformed target).
type InputError struct {
	Detail string
}

func (e *InputError) Error() string {
	return e.Detail
}

// UpstreamStatusError reports a non-2xx upstream status. The status code is
// propagated to the caller unchanged so a player can tell "source gone" (404)
// from "source gating us" (403) from "throttled" (429).
type UpstreamStatusError struct {
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("Upstream error: %d", e.StatusCode)
}

// ShapedResponse is an upstream response after content-class shaping, ready
// for the handler to write. Exactly one of Body and Stream is set for GET;
// HEAD responses carry neither.
type ShapedResponse struct {
	StatusCode  int
	Class       model.ContentClass
	ContentType string
	// CacheControl is set for shaped (buffered) classes, empty for passthrough.
	CacheControl string
	// Header is the upstream header set; the handler copies the range and
	// length metadata from it.
	Header http.Header
	// Body holds fully buffered content for json, playlist and text classes.
	Body []byte
	// Stream is the unconsumed upstream body for binary passthrough. The
	// handler owns closing it.
	Stream io.ReadCloser
}

// ProxyService drives one proxied media fetch end to end: target validation,
// the upstream round-trip, and response shaping by content class.
type ProxyService struct {
	cfg      *config.Config
	fetcher  Fetcher
	guard    *TargetGuard
	rewriter *hls.Rewriter
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewProxyService creates a ProxyService. The metrics parameter is optional;
// pass nil to disable recording.
func NewProxyService(cfg *config.Config, fetcher Fetcher, guard *TargetGuard, rewriter *hls.Rewriter, logger *slog.Logger, m *metrics.Metrics) *ProxyService {
	return &ProxyService{
		cfg:      cfg,
		fetcher:  fetcher,
		guard:    guard,
		rewriter: rewriter,
		logger:   logger.With("component", "proxy_service"),
		metrics:  m,
	}
}

// ParseRequest validates the inbound query contract and builds a ProxyRequest.
// A missing or malformed url parameter is an *InputError. An unparseable
// headers parameter is ignored: header hints are advisory, not a correctness
// requirement.
func (s *ProxyService) ParseRequest(method, rawTarget, rawHeaders, rangeHeader string) (*model.ProxyRequest, error) {
	if rawTarget == "" {
		return nil, &InputError{Detail: "missing url parameter"}
	}

	target, err := url.Parse(rawTarget)
	if err != nil || !target.IsAbs() || target.Host == "" {
		return nil, &InputError{Detail: fmt.Sprintf("invalid target URL %q", truncate(rawTarget, 200))}
	}

	pr := &model.ProxyRequest{
		Method:          method,
		Target:          target,
		RawHeadersParam: rawHeaders,
		RangeHeader:     rangeHeader,
	}

	if rawHeaders != "" {
		var forwarded map[string]string
		if err := json.Unmarshal([]byte(rawHeaders), &forwarded); err != nil {
			s.logger.Debug("ignoring unparseable headers parameter", "error", err)
			pr.RawHeadersParam = ""
		} else {
			pr.ForwardedHeaders = forwarded
		}
	}

	return pr, nil
}

// Process runs the full fetch-and-shape pipeline for one request. Errors are
// typed for the handler's status mapping: *BlockedTargetError and *InputError
// mean 400, *UpstreamStatusError carries the upstream status, anything else
// is a proxy-side failure.
func (s *ProxyService) Process(ctx context.Context, pr *model.ProxyRequest) (*ShapedResponse, error) {
	if err := s.guard.Validate(pr.Target); err != nil {
		var blocked *BlockedTargetError
		if s.metrics != nil && errors.As(err, &blocked) {
			s.metrics.BlockedTargets.WithLabelValues(blocked.Reason).Inc()
		}
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

	return s.shape(pr, resp)
}

// shape assigns a content class and transforms or hands off the body
// accordingly. Precedence: JSON, then playlist, then text, then binary.
func (s *ProxyService) shape(pr *model.ProxyRequest, resp *model.UpstreamResponse) (*ShapedResponse, error) {
	contentType := resp.Header.Get("Content-Type")
	class := Classify(pr.Target, contentType)

	if s.metrics != nil {
		s.metrics.ProxiedContent.WithLabelValues(string(class)).Inc()
	}

	shaped := &ShapedResponse{
		StatusCode:  resp.StatusCode,
		Class:       class,
		ContentType: contentType,
		Header:      resp.Header,
	}

	if pr.Method == http.MethodHead {
		drain(resp.Body)
		if class == model.ClassPlaylist {
			shaped.ContentType = "application/vnd.apple.mpegurl"
		}
		return shaped, nil
	}

	switch class {
	case model.ClassJSON:
		body, err := s.readBounded(resp.Body)
		if err != nil {
			return nil, err
		}
		var parsed any
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("reconstruct upstream JSON: %w", err)
		}
		reserialized, err := json.Marshal(parsed)
		if err != nil {
			return nil, fmt.Errorf("reconstruct upstream JSON: %w", err)
		}
		shaped.Body = reserialized
		shaped.ContentType = "application/json"
		shaped.CacheControl = "no-store"

	case model.ClassPlaylist:
		body, err := s.readBounded(resp.Body)
		if err != nil {
			return nil, err
		}
		shaped.Body = []byte(s.rewriter.Rewrite(string(body), pr.Target, pr.RawHeadersParam))
		shaped.ContentType = "application/vnd.apple.mpegurl"
		shaped.CacheControl = "no-cache"

	case model.ClassText:
		body, err := s.readBounded(resp.Body)
		if err != nil {
			return nil, err
		}
		shaped.Body = body

	default:
		// Binary passthrough: the handler streams resp.Body directly.
		shaped.Stream = resp.Body
	}

	return shaped, nil
}

// Classify maps an upstream response to its shaping class using the
// Content-Type plus the target URL. JSON wins over playlist so addon metadata
// tunneled through the proxy is never line-rewritten.
func Classify(target *url.URL, contentType string) model.ContentClass {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"):
		return model.ClassJSON
	case hls.IsPlaylist(target, contentType):
		return model.ClassPlaylist
	case strings.HasPrefix(ct, "text/"):
		return model.ClassText
	default:
		return model.ClassBinary
	}
}

// readBounded buffers a body that will be transformed as a whole document.
// Only KB-scale content (manifests, metadata JSON) takes this path, so the
// read is capped rather than unbounded.
func (s *ProxyService) readBounded(body io.ReadCloser) ([]byte, error) {
	data, err := readAllLimited(body, s.cfg.Proxy.MaxPlaylistBytes)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	return data, nil
}

// readAllLimited reads a body to completion, closing it, and errors when the
// content exceeds limit bytes.
func readAllLimited(body io.ReadCloser, limit int64) ([]byte, error) {
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("body exceeds %d byte buffering limit", limit)
	}
	return data, nil
}

// drain discards and closes a response body so the connection can be reused.
func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	body.Close()
}

// truncate shortens attacker-influenced strings before they reach logs or
// error bodies.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
