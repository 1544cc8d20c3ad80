// Package hls classifies and rewrites HTTP Live Streaming playlists.
package hls

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/grafana/regexp"
)

// uriAttrPattern matches the URI attribute of HLS tags. It appears on
// encryption keys (#EXT-X-KEY), alternate renditions (#EXT-X-MEDIA) and
// byte-range maps (#EXT-X-MAP); both quote styles occur in the wild.
var uriAttrPattern = regexp.MustCompile(`URI="([^"]*)"|URI='([^']*)'`)

// opaqueSchemePattern matches URI scheme markers (skd:, data:, urn: …).
var opaqueSchemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

// Rewriter rewrites playlist text so every network reference routes back
// through the proxy. Rewriting is not recursive: a proxied sub-playlist URL
// flows back through the proxy and is rewritten on its own fetch, which keeps
// each pass stateless and avoids eagerly prefetching every rendition.
type Rewriter struct {
	// ProxyPath is the root-relative proxy endpoint, normally "/proxy".
	// Rewritten references stay root-relative so they resolve against
	// whichever host served the manifest.
	ProxyPath string
}

// NewRewriter creates a Rewriter for the given proxy endpoint path.
func NewRewriter(proxyPath string) *Rewriter {
	if proxyPath == "" {
		proxyPath = "/proxy"
	}
	return &Rewriter{ProxyPath: proxyPath}
}

// Rewrite transforms playlist text fetched from playlistURL so that every
// media, sub-playlist and tag URI reference is wrapped in a proxied URL
// carrying headersParam (the caller's forwarded-headers JSON, may be empty).
// Line order and blank lines are preserved exactly: tags bind to the
// following media line, so the layout is semantically load-bearing.
func (rw *Rewriter) Rewrite(content string, playlistURL *url.URL, headersParam string) string {
	content = Normalize(content)

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			// keep blank lines verbatim

		case strings.HasPrefix(line, "#EXT") && uriAttrPattern.MatchString(line):
			lines[i] = rw.rewriteTagURI(line, playlistURL, headersParam)

		case strings.HasPrefix(line, "#"):
			// comments and plain tags pass through unchanged

		default:
			lines[i] = rw.proxyReference(strings.TrimSpace(line), playlistURL, headersParam)
		}
	}

	return strings.Join(lines, "\n")
}

// Normalize converts CRLF/CR line endings to LF and unwraps manifests that
// arrive JSON-string-escaped: some origins return the playlist wrapped in a
// surrounding quoted string, or with literal \n sequences instead of
// newlines. Unwrapping must happen before line-splitting.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	trimmed := strings.TrimSpace(content)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		if unquoted, err := strconv.Unquote(trimmed); err == nil {
			return unquoted
		}
		// Not valid Go/JSON string syntax; strip the quotes and fall through
		// to the literal-escape replacement below.
		content = trimmed[1 : len(trimmed)-1]
	}

	if !strings.Contains(content, "\n") && strings.Contains(content, `\n`) {
		content = strings.ReplaceAll(content, `\r\n`, "\n")
		content = strings.ReplaceAll(content, `\n`, "\n")
	}

	return content
}

// rewriteTagURI splices a proxied URL into the URI attribute of a tag line,
// leaving the rest of the tag text unchanged.
func (rw *Rewriter) rewriteTagURI(line string, base *url.URL, headersParam string) string {
	return uriAttrPattern.ReplaceAllStringFunc(line, func(match string) string {
		quote := `"`
		inner := strings.TrimPrefix(match, "URI=")
		if strings.HasPrefix(inner, "'") {
			quote = "'"
		}
		inner = strings.Trim(inner, `"'`)

		return "URI=" + quote + rw.proxyReference(inner, base, headersParam) + quote
	})
}

// proxyReference resolves one playlist reference to an absolute URL and wraps
// it in a proxied URL. Opaque non-HTTP schemes (DRM key URIs, data URIs) are
// returned untouched so they reach the player unmodified.
func (rw *Rewriter) proxyReference(ref string, base *url.URL, headersParam string) string {
	abs, opaque := ResolveReference(ref, base)
	if opaque {
		return ref
	}
	return rw.ProxyURL(abs, headersParam)
}

// ResolveReference resolves a playlist reference against the URL the playlist
// was fetched from. The second return value reports an opaque non-HTTP scheme
// that must not be rewritten.
func ResolveReference(ref string, base *url.URL) (string, bool) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref, false
	case strings.HasPrefix(ref, "//"):
		// protocol-relative; origins serving these are HTTPS in practice
		return "https:" + ref, false
	case opaqueSchemePattern.MatchString(ref):
		return "", true
	case strings.HasPrefix(ref, "/"):
		return base.Scheme + "://" + base.Host + ref, false
	default:
		return baseDirectory(base) + ref, false
	}
}

// ProxyURL wraps an absolute target URL in a root-relative proxied URL,
// threading the forwarded-headers bundle so the segment request can
// reconstruct the same upstream header set.
func (rw *Rewriter) ProxyURL(target, headersParam string) string {
	proxied := rw.ProxyPath + "?url=" + url.QueryEscape(target)
	if headersParam != "" {
		proxied += "&headers=" + url.QueryEscape(headersParam)
	}
	return proxied
}

// baseDirectory returns the playlist URL truncated after its last path slash,
// the base that path-relative segment references resolve against.
func baseDirectory(u *url.URL) string {
	path := u.Path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[:idx+1]
	} else {
		path = "/"
	}
	return u.Scheme + "://" + u.Host + path
}
