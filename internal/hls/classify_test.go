package hls

import (
	"net/url"
	"strings"
	"testing"
)

func TestGuessByURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://cdn.example.com/hls/index.m3u8", true},
		{"https://cdn.example.com/hls/INDEX.M3U8", true},
		{"https://cdn.example.com/list.m3u", true},
		{"https://cdn.example.com/play?src=live.m3u8&t=1", true},
		{"https://cdn.example.com/seg1.ts", false},
		{"https://cdn.example.com/movie.mp4", false},
		{"https://api.example.com/meta.json", false},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		if got := GuessByURL(u); got != tt.want {
			t.Errorf("GuessByURL(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsPlaylist(t *testing.T) {
	segURL, _ := url.Parse("https://cdn.example.com/seg1.ts")
	manifestURL, _ := url.Parse("https://cdn.example.com/index.m3u8")

	tests := []struct {
		name        string
		u           *url.URL
		contentType string
		want        bool
	}{
		{"mpegurl mime wins", segURL, "application/vnd.apple.mpegurl", true},
		{"x-mpegurl mime", segURL, "audio/x-mpegURL", true},
		{"m3u8 extension with generic mime", manifestURL, "application/octet-stream", true},
		{"neither", segURL, "video/mp2t", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlaylist(tt.u, tt.contentType); got != tt.want {
				t.Errorf("IsPlaylist() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProbe_Master(t *testing.T) {
	manifest := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1280000,RESOLUTION=1280x720,CODECS=\"avc1.64001f,mp4a.40.2\"\n" +
		"720p.m3u8\n" +
		"#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=2560000,RESOLUTION=1920x1080\n" +
		"1080p.m3u8\n"

	got, err := Probe(strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if got.Kind != "master" {
		t.Errorf("Kind = %q, want %q", got.Kind, "master")
	}
	if len(got.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(got.Variants))
	}
	if got.Variants[0].URI != "720p.m3u8" {
		t.Errorf("variant[0].URI = %q, want %q", got.Variants[0].URI, "720p.m3u8")
	}
	if got.Variants[0].Bandwidth != 1280000 {
		t.Errorf("variant[0].Bandwidth = %d, want 1280000", got.Variants[0].Bandwidth)
	}
	if got.Variants[1].Resolution != "1920x1080" {
		t.Errorf("variant[1].Resolution = %q, want %q", got.Variants[1].Resolution, "1920x1080")
	}
}

func TestProbe_Media(t *testing.T) {
	manifest := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:6\n" +
		"#EXTINF:6.0,\n" +
		"seg1.ts\n" +
		"#EXTINF:5.5,\n" +
		"seg2.ts\n" +
		"#EXT-X-ENDLIST\n"

	got, err := Probe(strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	if got.Kind != "media" {
		t.Errorf("Kind = %q, want %q", got.Kind, "media")
	}
	if got.Segments != 2 {
		t.Errorf("Segments = %d, want 2", got.Segments)
	}
	if got.TargetDuration != 6 {
		t.Errorf("TargetDuration = %v, want 6", got.TargetDuration)
	}
	if got.Live {
		t.Error("Live = true for a playlist with ENDLIST")
	}
}

func TestProbe_LiveMedia(t *testing.T) {
	manifest := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-TARGETDURATION:4\n" +
		"#EXTINF:4.0,\n" +
		"seg100.ts\n"

	got, err := Probe(strings.NewReader(manifest))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !got.Live {
		t.Error("Live = false for a playlist without ENDLIST")
	}
}

func TestProbe_NotAManifest(t *testing.T) {
	if _, err := Probe(strings.NewReader("<html>not a playlist</html>")); err == nil {
		t.Error("Probe() accepted non-manifest input")
	}
}
