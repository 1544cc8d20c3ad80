package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/client"
	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/hls"
	"flixnest-proxy-go/internal/service"
)

func testConfig() *config.Config {
	return &config.Config{
		Proxy: config.ProxyConfig{
			TimeoutSeconds:      5,
			IdleConnections:     4,
			MaxPlaylistBytes:    1 << 20,
			BrowserUserAgent:    "test-browser/1.0",
			PlaylistUserAgent:   "test-player/3.0",
			AcceptLanguage:      "en-US",
			AllowPrivateTargets: true, // httptest upstreams listen on loopback
		},
		Image: config.ImageConfig{
			CacheEntries:   8,
			TimeoutSeconds: 5,
			DefaultQuality: 80,
		},
		Vlc: config.VlcConfig{DisplayName: "FlixNest"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProxyHandler(cfg *config.Config) *ProxyHandler {
	logger := testLogger()
	fetcher := client.NewUpstreamClient(cfg, logger, nil)
	guard := service.NewTargetGuard(cfg.Proxy.AllowPrivateTargets)
	svc := service.NewProxyService(cfg, fetcher, guard, hls.NewRewriter("/proxy"), logger, nil)
	return NewProxyHandler(svc, logger, nil)
}

func proxyRequest(method, target, headersParam, rangeHeader string) (*httptest.ResponseRecorder, echo.Context) {
	e := echo.New()
	reqURL := "/proxy?url=" + url.QueryEscape(target)
	if headersParam != "" {
		reqURL += "&headers=" + url.QueryEscape(headersParam)
	}
	req := httptest.NewRequest(method, reqURL, http.NoBody)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	return rec, e.NewContext(req, rec)
}

func TestProxyHandler_MissingURL(t *testing.T) {
	h := newTestProxyHandler(testConfig())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/proxy", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected non-empty error message")
	}
}

func TestProxyHandler_BlockedTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Proxy.AllowPrivateTargets = false
	h := newTestProxyHandler(cfg)

	rec, c := proxyRequest(http.MethodGet, "http://192.168.1.1/admin", "", "")
	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProxyHandler_UnsupportedScheme(t *testing.T) {
	h := newTestProxyHandler(testConfig())

	rec, c := proxyRequest(http.MethodGet, "file:///etc/passwd", "", "")
	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProxyHandler_BinaryRangePassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "bytes=100-199" {
			t.Errorf("upstream Range = %q, want bytes=100-199", r.Header.Get("Range"))
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Range", "bytes 100-199/5000")
		w.Header().Set("Accept-Ranges", "bytes")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 100))
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig())
	rec, c := proxyRequest(http.MethodGet, upstream.URL+"/movie.mp4", "", "bytes=100-199")

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 100-199/5000" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if rec.Body.Len() != 100 {
		t.Errorf("body length = %d, want 100", rec.Body.Len())
	}
}

func TestProxyHandler_PlaylistRewritten(t *testing.T) {
	manifest := "#EXTM3U\n#EXTINF:6.0,\nseg1.ts\n"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		_, _ = w.Write([]byte(manifest))
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig())
	headersParam := `{"Referer":"https://site.example.com/"}`
	rec, c := proxyRequest(http.MethodGet, upstream.URL+"/hls/index.m3u8", headersParam, "")

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", got)
	}

	body := rec.Body.String()
	wantSeg := "/proxy?url=" + url.QueryEscape(upstream.URL+"/hls/seg1.ts") +
		"&headers=" + url.QueryEscape(headersParam)
	if !strings.Contains(body, wantSeg) {
		t.Errorf("body = %q, want segment rewritten to %q", body, wantSeg)
	}
}

func TestProxyHandler_JSONPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"meta": {"id": "tt123"}}`))
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig())
	rec, c := proxyRequest(http.MethodGet, upstream.URL+"/meta.json", "", "")

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestProxyHandler_UpstreamStatusPropagated(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig())
	rec, c := proxyRequest(http.MethodGet, upstream.URL+"/gone.ts", "", "")

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want upstream's 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "Upstream error: 404" {
		t.Errorf("error = %q, want %q", body["error"], "Upstream error: 404")
	}
}

func TestProxyHandler_HEAD(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("upstream method = %q, want HEAD", r.Method)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "4096")
		w.Header().Set("Accept-Ranges", "bytes")
	}))
	defer upstream.Close()

	h := newTestProxyHandler(testConfig())
	rec, c := proxyRequest(http.MethodHead, upstream.URL+"/movie.mp4", "", "")

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body length = %d, want 0 for HEAD", rec.Body.Len())
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
}

func TestProxyHandler_UnreachableUpstream(t *testing.T) {
	h := newTestProxyHandler(testConfig())
	// Closed port: connection refused.
	rec, c := proxyRequest(http.MethodGet, "http://127.0.0.1:1/seg1.ts", "", "")

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
