package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Enums
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusGenerating ProjectStatus = "generating" // scene images in progress
	ProjectStatusVoicing    ProjectStatus = "voicing"
	ProjectStatusRendering  ProjectStatus = "rendering"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusFailed     ProjectStatus = "failed"
)

type AssetType string

const (
	AssetTypeImage      AssetType = "image"
	AssetTypeVoiceover  AssetType = "voiceover"
	AssetTypeFinalVideo AssetType = "final_video"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

type JobType string

const (
	JobTypeGenerateImages    JobType = "generate_images"
	JobTypeGenerateVoiceover JobType = "generate_voiceover"
	JobTypeRenderVideo       JobType = "render_video"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Models

type Project struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Intro           string        `json:"intro"`
	Prompt          string        `json:"prompt"`
	Genre           string        `json:"genre"`
	Tone            string        `json:"tone"`
	Style           string        `json:"style"`
	DurationSeconds float64       `json:"duration_seconds"`
	BackgroundStyle string        `json:"background_style"`
	Status          ProjectStatus `json:"status"`
	VoiceoverURL    *string       `json:"voiceover_url,omitempty"`
	VideoURL        *string       `json:"video_url,omitempty"`
	VideoPath       *string       `json:"video_path,omitempty"` // storage key of the final video
	ErrorMessage    *string       `json:"error_message,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type Scene struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	SceneNumber  int       `json:"scene_number"`
	Action       string    `json:"action"`
	Dialogue     string    `json:"dialogue"`
	VoiceOver    string    `json:"voice_over"`
	VisualPrompt string    `json:"visual_prompt"`
	ImageURL     *string   `json:"image_url,omitempty"`
	ImagePath    *string   `json:"image_path,omitempty"` // storage key when the image lives in our bucket
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Narration is the text spoken over the scene: the voice-over line when
// present, otherwise the dialogue.
func (s Scene) Narration() string {
	if s.VoiceOver != "" {
		return s.VoiceOver
	}
	return s.Dialogue
}

type Asset struct {
	ID            uuid.UUID  `json:"id"`
	ProjectID     uuid.UUID  `json:"project_id"`
	SceneID       *uuid.UUID `json:"scene_id,omitempty"`
	Type          AssetType  `json:"type"`
	StorageBucket string     `json:"storage_bucket"`
	StoragePath   string     `json:"storage_path"`
	ContentType   *string    `json:"content_type,omitempty"`
	ByteSize      *int64     `json:"byte_size,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Job struct {
	ID           uuid.UUID  `json:"id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	SceneID      *uuid.UUID `json:"scene_id,omitempty"`
	Type         JobType    `json:"type"`
	Status       JobStatus  `json:"status"`
	Attempts     int        `json:"attempts"`
	Options      JSONB      `json:"options,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DTOs for API requests and responses

type GenerateScriptRequest struct {
	Prompt          string   `json:"prompt"`
	Genre           string   `json:"genre,omitempty"`
	Style           string   `json:"style,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"` // Default: 30, max 300
	BackgroundStyle string   `json:"background_style,omitempty"` // Default: minecraft
}

type ProjectResponse struct {
	Project
	Scenes []Scene `json:"scenes"`
}

type ListProjectsResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// UpdateProjectRequest carries the editable project fields; nil means unchanged.
type UpdateProjectRequest struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Intro           *string  `json:"intro,omitempty"`
	Tone            *string  `json:"tone,omitempty"`
	Style           *string  `json:"style,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	BackgroundStyle *string  `json:"background_style,omitempty"`
}

// UpdateSceneRequest carries the editable scene fields; nil means unchanged.
type UpdateSceneRequest struct {
	Action       *string `json:"action,omitempty"`
	Dialogue     *string `json:"dialogue,omitempty"`
	VoiceOver    *string `json:"voice_over,omitempty"`
	VisualPrompt *string `json:"visual_prompt,omitempty"`
}

type RegenerateSceneRequest struct {
	Style string `json:"style,omitempty"`
}

// RenderProjectRequest overrides project settings for one render.
type RenderProjectRequest struct {
	BackgroundStyle *string `json:"background_style,omitempty"`
	Subtitles       *string `json:"subtitles,omitempty"` // SRT text
	AutoSubtitles   bool    `json:"auto_subtitles,omitempty"`
	AudioURL        *string `json:"audio_url,omitempty"`
}

type JobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type ProjectStatusResponse struct {
	ProjectID    uuid.UUID     `json:"project_id"`
	Status       ProjectStatus `json:"status"`
	VideoURL     *string       `json:"video_url,omitempty"`
	VoiceoverURL *string       `json:"voiceover_url,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"`
	Jobs         []Job         `json:"jobs"`
}
