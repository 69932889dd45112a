package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bobarin/storyteller/internal/render"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadRequestOverrides(t *testing.T) {
	reqPath := writeFile(t, "req.json", `{
		"scenes": [{"scene_number": 1, "image_url": "https://cdn.test/1.png"}],
		"total_duration_seconds": 12,
		"background_style": "minecraft"
	}`)
	subsPath := writeFile(t, "subs.srt", "1\n00:00:00,000 --> 00:00:02,000\nHi\n")

	req, err := readRequest(reqPath, "subway", subsPath)
	if err != nil {
		t.Fatalf("readRequest failed: %v", err)
	}
	if req.BackgroundStyle != "subway" {
		t.Errorf("background = %s", req.BackgroundStyle)
	}
	if req.SubtitleText == nil || *req.SubtitleText == "" {
		t.Error("subtitles not loaded")
	}
	if len(req.Scenes) != 1 || !req.Scenes[0].Renderable() {
		t.Errorf("unexpected scenes %+v", req.Scenes)
	}
}

func TestReadRequestValidates(t *testing.T) {
	reqPath := writeFile(t, "req.json", `{"scenes": [], "total_duration_seconds": 0}`)

	_, err := readRequest(reqPath, "", "")
	if !errors.Is(err, render.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}
