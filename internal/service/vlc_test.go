package service

import (
	"errors"
	"testing"
)

func newTestVlcService() *VlcService {
	return NewVlcService(testConfig())
}

func TestVlcService_Build_MissingStream(t *testing.T) {
	svc := newTestVlcService()

	_, err := svc.Build("", nil, "https://flixnest.example.com")
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("Build() error = %v, want *InputError", err)
	}
}

func TestVlcService_Render_StreamOnly(t *testing.T) {
	svc := newTestVlcService()

	p, err := svc.Build("https://flixnest.example.com/proxy?url=x", nil, "https://flixnest.example.com")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := "#EXTM3U\n" +
		"#EXTINF:-1,FlixNest\n" +
		"https://flixnest.example.com/proxy?url=x\n"
	if got := svc.Render(p); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestVlcService_Render_WithSubtitles(t *testing.T) {
	svc := newTestVlcService()

	p, err := svc.Build(
		"https://flixnest.example.com/proxy?url=x",
		[]string{"https://subs.example.com/en.srt", "https://subs.example.com/fr.srt"},
		"https://flixnest.example.com",
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := "#EXTM3U\n" +
		"#EXTVLCOPT:input-slave=https://subs.example.com/en.srt#https://subs.example.com/fr.srt\n" +
		"#EXTINF:-1,FlixNest\n" +
		"https://flixnest.example.com/proxy?url=x\n"
	if got := svc.Render(p); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestVlcService_Build_ResolvesRelativeInputs(t *testing.T) {
	svc := newTestVlcService()
	origin := "https://flixnest.example.com"

	p, err := svc.Build("/proxy?url=x", []string{"subs/en.srt", ""}, origin)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if p.StreamURL != origin+"/proxy?url=x" {
		t.Errorf("StreamURL = %q", p.StreamURL)
	}
	if len(p.SubtitleURLs) != 1 {
		t.Fatalf("SubtitleURLs = %v, want empty entries dropped", p.SubtitleURLs)
	}
	if p.SubtitleURLs[0] != origin+"/subs/en.srt" {
		t.Errorf("SubtitleURLs[0] = %q", p.SubtitleURLs[0])
	}
}

func TestVlcService_Build_AbsolutePassthrough(t *testing.T) {
	svc := newTestVlcService()

	p, err := svc.Build("http://other.example.com/stream.m3u8", nil, "https://flixnest.example.com")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if p.StreamURL != "http://other.example.com/stream.m3u8" {
		t.Errorf("StreamURL = %q, want passthrough", p.StreamURL)
	}
}
