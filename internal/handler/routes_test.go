package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"

	"flixnest-proxy-go/internal/client"
	"flixnest-proxy-go/internal/hls"
	"flixnest-proxy-go/internal/service"
)

func newTestRouter(t *testing.T) *echo.Echo {
	t.Helper()

	cfg := testConfig()
	logger := testLogger()
	fetcher := client.NewUpstreamClient(cfg, logger, nil)
	guard := service.NewTargetGuard(true)
	rewriter := hls.NewRewriter("/proxy")

	proxySvc := service.NewProxyService(cfg, fetcher, guard, rewriter, logger, nil)
	imageSvc, err := service.NewImageService(cfg, fetcher, guard, logger, nil)
	if err != nil {
		t.Fatalf("NewImageService: %v", err)
	}
	probeSvc := service.NewProbeService(cfg, fetcher, guard, logger)

	e := echo.New()
	RegisterRoutes(e,
		NewProxyHandler(proxySvc, logger, nil),
		NewImageHandler(cfg, imageSvc, logger),
		NewVlcHandler(service.NewVlcService(cfg), logger),
		NewProbeHandler(proxySvc, probeSvc, logger),
		NewHealthHandler(cfg, "test"),
	)
	return e
}

func TestRegisterRoutes_Wiring(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		_, _ = w.Write([]byte("seg"))
	}))
	defer upstream.Close()

	e := newTestRouter(t)
	target := url.QueryEscape(upstream.URL + "/seg1.ts")

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK},
		{"GET /status", http.MethodGet, "/status", http.StatusOK},
		{"GET /proxy", http.MethodGet, "/proxy?url=" + target, http.StatusOK},
		{"HEAD /proxy", http.MethodHead, "/proxy?url=" + target, http.StatusOK},
		{"OPTIONS /proxy preflight", http.MethodOptions, "/proxy", http.StatusNoContent},
		{"OPTIONS /vlc-playlist preflight", http.MethodOptions, "/vlc-playlist", http.StatusNoContent},
		{"GET /vlc-playlist missing stream", http.MethodGet, "/vlc-playlist", http.StatusBadRequest},
		{"GET /proxy missing url", http.MethodGet, "/proxy", http.StatusBadRequest},
		{"GET /unknown", http.MethodGet, "/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_CORSOnProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("seg"))
	}))
	defer upstream.Close()

	e := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/proxy?url="+url.QueryEscape(upstream.URL+"/seg1.ts"), http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "Content-Length, Content-Range, Content-Type, Accept-Ranges" {
		t.Errorf("Access-Control-Expose-Headers = %q", got)
	}
}
