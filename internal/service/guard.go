// Package service implements the proxy's fetch, shaping and playlist logic.
package service

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Blocked-target reasons, used as bounded metric label values.
const (
	ReasonScheme  = "scheme"
	ReasonNoHost  = "no_host"
	ReasonPrivate = "private"
)

// BlockedTargetError reports a proxy target refused by validation. Reason is a
// bounded category for metrics; Detail is the client-facing message.
type BlockedTargetError struct {
	Reason string
	Detail string
}

func (e *BlockedTargetError) Error() string {
	return e.Detail
}

// TargetGuard validates upstream target URLs before any fetch. The proxy
// fetches attacker-influenced URLs by design, so anything pointing back into
// the host's own network is refused.
type TargetGuard struct {
	// allowPrivate disables the private-network refusal for tests that run
	// upstreams on loopback.
	allowPrivate bool
}

// NewTargetGuard creates a TargetGuard.
func NewTargetGuard(allowPrivate bool) *TargetGuard {
	return &TargetGuard{allowPrivate: allowPrivate}
}

// Validate returns a *BlockedTargetError when the target must not be fetched.
// Validation is syntactic; it does not resolve hostnames.
func (g *TargetGuard) Validate(u *url.URL) error {
	switch u.Scheme {
	case "http", "https":
	default:
		return &BlockedTargetError{
			Reason: ReasonScheme,
			Detail: fmt.Sprintf("unsupported target scheme %q", u.Scheme),
		}
	}

	host := u.Hostname()
	if host == "" {
		return &BlockedTargetError{
			Reason: ReasonNoHost,
			Detail: "target URL has no host",
		}
	}

	if g.allowPrivate {
		return nil
	}

	if isPrivateHost(host) {
		return &BlockedTargetError{
			Reason: ReasonPrivate,
			Detail: fmt.Sprintf("target host %q is not publicly routable", host),
		}
	}

	return nil
}

// isPrivateHost reports whether a hostname or IP literal points at loopback,
// RFC 1918, link-local or mDNS space.
func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".local") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
