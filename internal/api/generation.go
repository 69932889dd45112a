package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bobarin/storyteller/internal/models"
	"github.com/bobarin/storyteller/internal/queue"
	"github.com/bobarin/storyteller/internal/render"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// GenerateImages handles POST /v1/projects/{id}/images
func (h *Handler) GenerateImages(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	scenes, ok := h.projectScenes(w, r, projectID)
	if !ok {
		return
	}
	if len(scenes) == 0 {
		respondError(w, http.StatusNotFound, "No scenes found for this project")
		return
	}

	job := newJob(projectID, models.JobTypeGenerateImages, nil, nil)
	h.startJob(w, r, job, func(ctx context.Context) error {
		return h.queue.EnqueueGenerateImages(ctx, projectID, job.ID, nil, nil)
	})
}

// RegenerateScene handles POST /v1/scenes/{id}/regenerate
// Body (optional): {"style": "pixel art"} prefixes the scene's visual prompt.
func (h *Handler) RegenerateScene(w http.ResponseWriter, r *http.Request) {
	sceneID, ok := urlUUID(w, r, "id", "scene")
	if !ok {
		return
	}

	var req models.RegenerateSceneRequest
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	scene, err := h.db.GetScene(r.Context(), sceneID)
	if err != nil {
		respondDBError(w, err, "Scene")
		return
	}

	var opts *queue.ImageOptions
	if style := strings.TrimSpace(req.Style); style != "" {
		opts = &queue.ImageOptions{StylePrefix: style}
	}

	job := newJob(scene.ProjectID, models.JobTypeGenerateImages, &scene.ID, opts)
	h.startJob(w, r, job, func(ctx context.Context) error {
		return h.queue.EnqueueGenerateImages(ctx, scene.ProjectID, job.ID, &scene.ID, opts)
	})
}

// GenerateVoiceover handles POST /v1/projects/{id}/voiceover
func (h *Handler) GenerateVoiceover(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	scenes, ok := h.projectScenes(w, r, projectID)
	if !ok {
		return
	}
	hasNarration := lo.ContainsBy(scenes, func(s models.Scene) bool {
		return strings.TrimSpace(s.Narration()) != ""
	})
	if !hasNarration {
		respondError(w, http.StatusConflict, "No narration text in any scene")
		return
	}

	job := newJob(projectID, models.JobTypeGenerateVoiceover, nil, nil)
	h.startJob(w, r, job, func(ctx context.Context) error {
		return h.queue.EnqueueGenerateVoiceover(ctx, projectID, job.ID)
	})
}

// RenderProject handles POST /v1/projects/{id}/render
func (h *Handler) RenderProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	var req models.RenderProjectRequest
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := h.validateRender(&req); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	scenes, ok := h.projectScenes(w, r, projectID)
	if !ok {
		return
	}
	hasImage := lo.ContainsBy(scenes, func(s models.Scene) bool {
		return s.ImageURL != nil && strings.TrimSpace(*s.ImageURL) != ""
	})
	if !hasImage {
		respondError(w, http.StatusConflict, "No scene images to render yet")
		return
	}

	opts := queue.RenderOptions{
		BackgroundStyle: req.BackgroundStyle,
		Subtitles:       req.Subtitles,
		AutoSubtitles:   req.AutoSubtitles,
		AudioURL:        req.AudioURL,
	}

	job := newJob(projectID, models.JobTypeRenderVideo, nil, opts)
	h.startJob(w, r, job, func(ctx context.Context) error {
		return h.queue.EnqueueRenderVideo(ctx, projectID, job.ID, opts)
	})
}

// validateRender checks render overrides before anything is queued and
// normalises the background style.
func (h *Handler) validateRender(req *models.RenderProjectRequest) string {
	if req.BackgroundStyle != nil {
		style := strings.ToLower(strings.TrimSpace(*req.BackgroundStyle))
		if style != "" && !h.knownBackground(style) {
			return "Unknown background style"
		}
		req.BackgroundStyle = &style
	}
	if req.AudioURL != nil && strings.TrimSpace(*req.AudioURL) != "" && !render.IsRemoteRef(*req.AudioURL) {
		return "audio_url must be an http(s) URL"
	}
	if req.Subtitles != nil && strings.TrimSpace(*req.Subtitles) != "" {
		cues, errs := render.ParseSRTLenient(*req.Subtitles)
		if len(cues) == 0 && len(errs) > 0 {
			return fmt.Sprintf("Subtitles contain no valid cues: %v", errs[0])
		}
	}
	return ""
}

// projectScenes loads a project's scenes, writing a 404 when the project
// does not exist.
func (h *Handler) projectScenes(w http.ResponseWriter, r *http.Request, projectID uuid.UUID) ([]models.Scene, bool) {
	if _, err := h.db.GetProject(r.Context(), projectID); err != nil {
		respondDBError(w, err, "Project")
		return nil, false
	}
	scenes, err := h.db.GetProjectScenes(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get scenes")
		return nil, false
	}
	return scenes, true
}

// startJob records job and hands it to the queue, answering 202.
func (h *Handler) startJob(w http.ResponseWriter, r *http.Request, job *models.Job, enqueue func(context.Context) error) {
	if err := h.db.CreateJob(r.Context(), job); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	if err := enqueue(r.Context()); err != nil {
		log.WithField("job", job.ID).Errorf("failed to enqueue: %v", err)
		if dbErr := h.db.UpdateJobError(r.Context(), job.ID, err.Error()); dbErr != nil {
			log.WithField("job", job.ID).Warnf("failed to record job error: %v", dbErr)
		}
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.JobResponse{JobID: job.ID, Status: job.Status})
}

func newJob(projectID uuid.UUID, jobType models.JobType, sceneID *uuid.UUID, options interface{}) *models.Job {
	return &models.Job{
		ID:        uuid.New(),
		ProjectID: projectID,
		SceneID:   sceneID,
		Type:      jobType,
		Status:    models.JobStatusQueued,
		Options:   toJSONB(options),
	}
}

// toJSONB flattens job options for the jobs.options column.
func toJSONB(v interface{}) models.JSONB {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out models.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
