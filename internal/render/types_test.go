package render

import (
	"errors"
	"math"
	"testing"
)

func TestRenderRequestValidate(t *testing.T) {
	scenes := []Scene{{SceneNumber: 1, ImageRef: strPtr("https://img.test/1.png")}}

	tests := []struct {
		name    string
		req     RenderRequest
		wantErr bool
	}{
		{"valid", RenderRequest{Scenes: scenes, TotalDurationSeconds: 30}, false},
		{"zero duration", RenderRequest{Scenes: scenes, TotalDurationSeconds: 0}, true},
		{"negative duration", RenderRequest{Scenes: scenes, TotalDurationSeconds: -5}, true},
		{"NaN duration", RenderRequest{Scenes: scenes, TotalDurationSeconds: math.NaN()}, true},
		{"no scenes", RenderRequest{TotalDurationSeconds: 30}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRenderableScenesKeepsOrder(t *testing.T) {
	req := RenderRequest{Scenes: []Scene{
		{SceneNumber: 1, ImageRef: strPtr("a")},
		{SceneNumber: 2},
		{SceneNumber: 3, ImageRef: strPtr("  ")},
		{SceneNumber: 4, ImageRef: strPtr("d")},
	}}

	got := req.RenderableScenes()
	if len(got) != 2 {
		t.Fatalf("expected 2 renderable scenes, got %d", len(got))
	}
	if got[0].SceneNumber != 1 || got[1].SceneNumber != 4 {
		t.Errorf("unexpected scenes: %+v", got)
	}
}

func TestBackgroundLoops(t *testing.T) {
	tests := []struct {
		bg    Background
		total float64
		want  int
	}{
		{Background{Path: "bg.mp4", ClipDuration: 10}, 25, 3},
		{Background{Path: "bg.mp4", ClipDuration: 10}, 20, 3},
		{Background{Path: "bg.mp4", ClipDuration: 30}, 25, 1},
		{Background{Path: "bg.mp4", ClipDuration: 25}, 25, 1},
		{Background{Path: "black.png", Still: true}, 60, 1},
	}

	for _, tt := range tests {
		if got := tt.bg.Loops(tt.total); got != tt.want {
			t.Errorf("Loops(%v) with clip %v = %d, want %d", tt.total, tt.bg.ClipDuration, got, tt.want)
		}
	}
}
