// Package model defines shared value types for the media proxy.
package model

import (
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest represents one inbound request to fetch an upstream media
// resource. It is created per request and discarded once the response is sent.
type ProxyRequest struct {
	Method string // http.MethodGet or http.MethodHead
	Target *url.URL
	// ForwardedHeaders are caller-supplied extras from the "headers" query
	// parameter (typically a User-Agent/Referer pair taken from an addon's
	// stream descriptor). They override the default impersonation headers.
	ForwardedHeaders map[string]string
	// RawHeadersParam is the original JSON value of the "headers" query
	// parameter. The rewriter threads it into every proxied URL so a later
	// segment request reconstructs the same upstream header set without
	// server-side session state.
	RawHeadersParam string
	// RangeHeader is the inbound Range header, forwarded verbatim upstream.
	RangeHeader string
}

// UpstreamResponse is the upstream reply owned by the handler for the
// duration of one request. Body is nil for HEAD responses.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// ContentClass is the shaping category assigned to an upstream response.
type ContentClass string

const (
	ClassJSON     ContentClass = "json"
	ClassPlaylist ContentClass = "playlist"
	ClassText     ContentClass = "text"
	ClassBinary   ContentClass = "binary"
)

// StreamSource is the boundary shape an addon's stream resolution supplies:
// a playable URL plus the headers the origin requires. The proxy consumes
// these through the /proxy "headers" query parameter; it never talks to
// addons itself.
type StreamSource struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Name    string            `json:"name,omitempty"`
	Title   string            `json:"title,omitempty"`
}

// SubtitleSource is the boundary shape of a resolved external subtitle track.
type SubtitleSource struct {
	URL      string `json:"url"`
	Language string `json:"lang,omitempty"`
}

// VlcPlaylist describes one external-player handoff: a single resolved stream
// URL plus zero or more subtitle URLs. Built once per playback session and
// rendered to text, never mutated after creation.
type VlcPlaylist struct {
	StreamURL    string
	SubtitleURLs []string
}
