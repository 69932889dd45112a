package queue

import (
	"testing"

	"github.com/bobarin/storyteller/internal/models"
	"github.com/google/uuid"
)

func TestRenderJobCarriesOptions(t *testing.T) {
	bg := "subway"
	job := &Job{
		ID:        uuid.New(),
		Type:      models.JobTypeRenderVideo,
		ProjectID: uuid.New(),
		Render:    &RenderOptions{BackgroundStyle: &bg, AutoSubtitles: true},
	}

	data, err := encodeJob(job)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := decodeJob(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Render == nil || got.Render.BackgroundStyle == nil || *got.Render.BackgroundStyle != "subway" {
		t.Fatalf("render options lost: %+v", got.Render)
	}
	if !got.Render.AutoSubtitles {
		t.Error("auto_subtitles lost")
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be stamped")
	}
}

func TestDecodeJobRejectsIncomplete(t *testing.T) {
	if _, err := decodeJob([]byte(`{"type":"render_video"}`)); err == nil {
		t.Error("expected error for job without ids")
	}
	if _, err := decodeJob([]byte(`not json`)); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestQueueForType(t *testing.T) {
	tests := map[models.JobType]string{
		models.JobTypeGenerateImages:    QueueGenerateImages,
		models.JobTypeGenerateVoiceover: QueueGenerateVoiceover,
		models.JobTypeRenderVideo:       QueueRenderVideo,
	}
	for jt, want := range tests {
		got, err := QueueForType(jt)
		if err != nil || got != want {
			t.Errorf("QueueForType(%s) = %s, %v", jt, got, err)
		}
	}
	if _, err := QueueForType("bogus"); err == nil {
		t.Error("expected error for unknown type")
	}
}
