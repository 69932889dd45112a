package worker

import (
	"strings"
	"testing"

	"github.com/bobarin/storyteller/internal/models"
	"github.com/bobarin/storyteller/internal/queue"
	"github.com/bobarin/storyteller/internal/render"
	"github.com/google/uuid"
)

func strp(s string) *string { return &s }

func testProject() *models.Project {
	return &models.Project{
		ID:              uuid.New(),
		DurationSeconds: 20,
		BackgroundStyle: "minecraft",
		VoiceoverURL:    strp("https://cdn.test/voice.mp3"),
	}
}

func testScenes() []models.Scene {
	return []models.Scene{
		{SceneNumber: 1, Dialogue: "First.", ImageURL: strp("https://cdn.test/1.png"), ImagePath: strp("images/1.png")},
		{SceneNumber: 2, Dialogue: "Skipped, no image."},
		{SceneNumber: 3, Dialogue: "Third.", VoiceOver: "Third narrated.", ImageURL: strp("https://cdn.test/3.png")},
	}
}

func TestBuildRenderRequestFromProject(t *testing.T) {
	req := BuildRenderRequest(testProject(), testScenes(), queue.RenderOptions{})

	if req.TotalDurationSeconds != 20 || req.BackgroundStyle != "minecraft" {
		t.Errorf("unexpected request %+v", req)
	}
	if req.AudioRef == nil || *req.AudioRef != "https://cdn.test/voice.mp3" {
		t.Errorf("expected project voiceover as audio, got %v", req.AudioRef)
	}
	if len(req.Scenes) != 3 {
		t.Fatalf("expected all scenes passed through, got %d", len(req.Scenes))
	}
	if req.Scenes[0].StorageKey != "images/1.png" || req.Scenes[2].StorageKey != "" {
		t.Errorf("unexpected storage keys: %+v", req.Scenes)
	}
	if req.Scenes[1].Renderable() {
		t.Error("scene without image should not be renderable")
	}
	if req.SubtitleText != nil {
		t.Error("no subtitles expected by default")
	}
	if err := req.Validate(); err != nil {
		t.Errorf("request should validate: %v", err)
	}
}

func TestBuildRenderRequestOverrides(t *testing.T) {
	opts := queue.RenderOptions{
		BackgroundStyle: strp("subway"),
		AudioURL:        strp("https://cdn.test/other.mp3"),
		Subtitles:       strp("1\n00:00:00,000 --> 00:00:01,000\nHi\n"),
		AutoSubtitles:   true,
	}
	req := BuildRenderRequest(testProject(), testScenes(), opts)

	if req.BackgroundStyle != "subway" {
		t.Errorf("background override ignored: %s", req.BackgroundStyle)
	}
	if *req.AudioRef != "https://cdn.test/other.mp3" {
		t.Errorf("audio override ignored: %s", *req.AudioRef)
	}
	// explicit subtitles win over auto subtitles
	if req.SubtitleText == nil || !strings.Contains(*req.SubtitleText, "Hi") {
		t.Errorf("explicit subtitles not used: %v", req.SubtitleText)
	}
}

func TestBuildRenderRequestAutoSubtitles(t *testing.T) {
	req := BuildRenderRequest(testProject(), testScenes(), queue.RenderOptions{AutoSubtitles: true})
	if req.SubtitleText == nil {
		t.Fatal("expected generated subtitles")
	}

	cues, err := render.ParseSRT(*req.SubtitleText)
	if err != nil {
		t.Fatalf("generated subtitles do not parse: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("expected one cue per rendered scene, got %d", len(cues))
	}
	if cues[0].Text != "First." || cues[1].Text != "Third narrated." {
		t.Errorf("unexpected cue texts: %+v", cues)
	}
	if cues[0].End != 10 || cues[1].Start != 10 || cues[1].End != 20 {
		t.Errorf("cues not split evenly: %+v", cues)
	}
}

func TestBuildRenderRequestDefaultDuration(t *testing.T) {
	p := testProject()
	p.DurationSeconds = 0
	req := BuildRenderRequest(p, testScenes(), queue.RenderOptions{})
	if req.TotalDurationSeconds != defaultDurationSeconds {
		t.Errorf("expected default duration, got %v", req.TotalDurationSeconds)
	}
}

func TestScenePrompt(t *testing.T) {
	if got := ScenePrompt(" a fox ", ""); got != "a fox" {
		t.Errorf("got %q", got)
	}
	if got := ScenePrompt("a fox", "pixel art"); got != "pixel art, a fox" {
		t.Errorf("got %q", got)
	}
}
