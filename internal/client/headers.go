package client

import (
	"net/http"

	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/hls"
	"flixnest-proxy-go/internal/model"
)

// deniedForwardHeaders are hop-by-hop and transport-owned headers that the
// caller's forwarded bundle must never override.
var deniedForwardHeaders = map[string]struct{}{
	"Host":                {},
	"Connection":          {},
	"Content-Length":      {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Keep-Alive":          {},
	"Te":                  {},
	"Trailer":             {},
	"Proxy-Authorization": {},
	"Proxy-Authenticate":  {},
}

// BuildHeaders assembles the upstream request header set: browser-style
// defaults derived from the target, then caller-forwarded overrides, then the
// inbound Range header. Targets that look like HLS manifests get the
// player-style User-Agent; everything else is fetched as a browser.
func BuildHeaders(cfg *config.ProxyConfig, pr *model.ProxyRequest) http.Header {
	h := make(http.Header)

	ua := cfg.BrowserUserAgent
	if hls.GuessByURL(pr.Target) {
		ua = cfg.PlaylistUserAgent
	}
	h.Set("User-Agent", ua)
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", cfg.AcceptLanguage)

	// Origin and Referer mirror the target's own origin; hotlink-protected
	// CDNs check these against the site that embeds the stream.
	origin := pr.Target.Scheme + "://" + pr.Target.Host
	h.Set("Origin", origin)
	h.Set("Referer", origin+"/")

	for name, value := range pr.ForwardedHeaders {
		canonical := http.CanonicalHeaderKey(name)
		if _, denied := deniedForwardHeaders[canonical]; denied {
			continue
		}
		h.Set(canonical, value)
	}

	if pr.RangeHeader != "" {
		h.Set("Range", pr.RangeHeader)
	}

	return h
}
