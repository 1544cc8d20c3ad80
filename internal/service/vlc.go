package service

import (
	"strings"

	"flixnest-proxy-go/internal/config"
	"flixnest-proxy-go/internal/model"
)

// VlcService builds the one-shot playlist handed to an external player.
// Pure string construction: it performs no upstream fetch and cannot fail
// beyond the missing-stream case.
type VlcService struct {
	displayName string
}

// NewVlcService creates a VlcService.
func NewVlcService(cfg *config.Config) *VlcService {
	return &VlcService{displayName: cfg.Vlc.DisplayName}
}

// Build assembles a playlist from the stream and subtitle query values.
// serverOrigin is the scheme://host the generating server is reachable at;
// relative inputs resolve against it. Inputs are expected to be either
// already-proxied absolute URLs or same-origin paths, not arbitrary
// references.
func (s *VlcService) Build(streamParam string, subParams []string, serverOrigin string) (*model.VlcPlaylist, error) {
	if streamParam == "" {
		return nil, &InputError{Detail: "missing stream parameter"}
	}

	playlist := &model.VlcPlaylist{
		StreamURL: absolutize(streamParam, serverOrigin),
	}
	for _, sub := range subParams {
		if sub == "" {
			continue
		}
		playlist.SubtitleURLs = append(playlist.SubtitleURLs, absolutize(sub, serverOrigin))
	}
	return playlist, nil
}

// Render produces the exact playlist text. Order is fixed: header, the
// subtitle option when present, the title line, then the stream URL. VLC's
// input-slave option takes multiple subtitle URLs joined with '#'.
func (s *VlcService) Render(p *model.VlcPlaylist) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	if len(p.SubtitleURLs) > 0 {
		b.WriteString("#EXTVLCOPT:input-slave=")
		b.WriteString(strings.Join(p.SubtitleURLs, "#"))
		b.WriteString("\n")
	}
	b.WriteString("#EXTINF:-1,")
	b.WriteString(s.displayName)
	b.WriteString("\n")
	b.WriteString(p.StreamURL)
	b.WriteString("\n")
	return b.String()
}

// absolutize resolves a playlist input against the server's own origin.
// Already-absolute values pass through unchanged.
func absolutize(raw, origin string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return origin + raw
	}
	return origin + "/" + raw
}
