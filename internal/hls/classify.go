package hls

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/grafov/m3u8"
)

// GuessByURL reports whether a target looks like an HLS manifest from its URL
// alone. This runs before the upstream fetch, where the guess decides which
// User-Agent to impersonate; some origins only serve manifests to player-like
// clients.
func GuessByURL(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	if strings.HasSuffix(p, ".m3u8") || strings.HasSuffix(p, ".m3u") {
		return true
	}
	// a few CDNs tunnel the manifest path through a query parameter
	return strings.Contains(strings.ToLower(u.RawQuery), ".m3u8")
}

// IsPlaylist confirms the classification after the fetch, using the upstream
// Content-Type plus the pre-fetch guess. Both checks live here so the "guess
// before fetching, confirm after fetching" split shares one definition.
func IsPlaylist(u *url.URL, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "mpegurl") {
		return true
	}
	return GuessByURL(u)
}

// ProbeVariant describes one quality rendition of a master playlist.
type ProbeVariant struct {
	URI        string `json:"uri"`
	Bandwidth  uint32 `json:"bandwidth"`
	Resolution string `json:"resolution,omitempty"`
	Codecs     string `json:"codecs,omitempty"`
}

// ProbeResult is the parsed classification of a manifest, used by clients to
// select a playback engine before starting playback.
type ProbeResult struct {
	Kind           string         `json:"kind"` // "master" or "media"
	Variants       []ProbeVariant `json:"variants,omitempty"`
	Segments       uint           `json:"segments,omitempty"`
	TargetDuration float64        `json:"target_duration,omitempty"`
	Live           bool           `json:"live"`
}

// Probe parses manifest text and reports whether it is a master playlist
// (listing variants) or a media playlist (listing segments).
func Probe(r io.Reader) (*ProbeResult, error) {
	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(r), true)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		result := &ProbeResult{Kind: "master"}
		for _, v := range master.Variants {
			if v == nil {
				continue
			}
			result.Variants = append(result.Variants, ProbeVariant{
				URI:        v.URI,
				Bandwidth:  v.Bandwidth,
				Resolution: v.Resolution,
				Codecs:     v.Codecs,
			})
		}
		return result, nil

	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		return &ProbeResult{
			Kind:           "media",
			Segments:       media.Count(),
			TargetDuration: media.TargetDuration,
			Live:           !media.Closed,
		}, nil

	default:
		return nil, fmt.Errorf("unrecognized playlist type")
	}
}
