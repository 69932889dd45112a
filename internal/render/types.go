package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

// Output profile. These are pipeline constants, not request parameters.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1920

	OutputFPS    = 24
	VideoCodec   = "libx264"
	AudioCodec   = "aac"
	EncodePreset = "medium"
	EncodeThread = 4

	// Scene overlays take 60% of canvas height and sit this far from the top.
	overlayHeightRatio = 0.6
	overlayTopOffset   = 50
)

// Canvas is the fixed output frame geometry.
type Canvas struct {
	Width  int
	Height int
}

// DefaultCanvas is the 9:16 vertical frame every video is rendered at.
var DefaultCanvas = Canvas{Width: CanvasWidth, Height: CanvasHeight}

// Scene is one narrative beat. Only scenes with a non-empty ImageRef render.
type Scene struct {
	SceneNumber int     `json:"scene_number"`
	ImageRef    *string `json:"image_url,omitempty"`
	StorageKey  string  `json:"storage_key,omitempty"` // optional hint for the storage fallback
}

// Renderable reports whether the scene carries an image reference.
func (s Scene) Renderable() bool {
	return s.ImageRef != nil && strings.TrimSpace(*s.ImageRef) != ""
}

// Cue is one timed subtitle entry, in seconds.
type Cue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// RenderRequest is everything the pipeline needs to produce one video.
type RenderRequest struct {
	Scenes               []Scene `json:"scenes"`
	AudioRef             *string `json:"audio_url,omitempty"`
	SubtitleText         *string `json:"subtitles,omitempty"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	BackgroundStyle      string  `json:"background_style"`
}

// Validate checks the request at construction time, before any I/O. An
// empty scene list is not an error here; it surfaces as ErrNoRenderableScenes
// once scenes are filtered.
func (r RenderRequest) Validate() error {
	if math.IsNaN(r.TotalDurationSeconds) || math.IsInf(r.TotalDurationSeconds, 0) || r.TotalDurationSeconds <= 0 {
		return fmt.Errorf("%w: total duration must be > 0, got %v", ErrInvalidRequest, r.TotalDurationSeconds)
	}
	return nil
}

// RenderableScenes returns the scenes that take part in rendering, in order.
func (r RenderRequest) RenderableScenes() []Scene {
	return lo.Filter(r.Scenes, func(s Scene, _ int) bool {
		return s.Renderable()
	})
}

// RenderResult is the only successful outcome: a URL to an uploaded video.
type RenderResult struct {
	VideoURL    string  `json:"video_url"`
	StoragePath string  `json:"storage_path"`
	ByteSize    int64   `json:"byte_size"`
	Duration    float64 `json:"duration_seconds"`
}

// Timeline is the in-memory composition handed to the encoder.
type Timeline struct {
	Canvas     Canvas
	Duration   float64
	Background Background
	Layers     []Layer
	Audio      *AudioTrack
	Cues       []Cue
	// SubtitlePath is the rendered ASS file for Cues, empty when there are none.
	SubtitlePath string
}

// Background is the bottom layer of the timeline: a looped clip or a
// canvas-sized still frame.
type Background struct {
	Style        string
	Path         string
	Still        bool    // Path is an image shown for the whole duration
	ClipDuration float64 // duration of one pass of the clip at Path
}

// Loops returns how many whole-clip passes are needed to cover total seconds.
func (b Background) Loops(total float64) int {
	if b.Still || b.ClipDuration <= 0 || b.ClipDuration >= total {
		return 1
	}
	return int(total/b.ClipDuration) + 1
}

// Layer is a scene image placed on the canvas for a time window.
type Layer struct {
	SceneNumber int
	Path        string
	Start       float64
	Duration    float64
	X, Y        int
	Width       int
	Height      int
}

// End is the exclusive end of the layer's time window.
func (l Layer) End() float64 {
	return l.Start + l.Duration
}

// AudioTrack is the narration attached to the video.
type AudioTrack struct {
	Path     string
	Duration float64 // 0 when the duration could not be probed
}
