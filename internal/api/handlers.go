package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobarin/storyteller/internal/db"
	"github.com/bobarin/storyteller/internal/models"
	"github.com/bobarin/storyteller/internal/queue"
	"github.com/bobarin/storyteller/internal/render"
	"github.com/bobarin/storyteller/internal/services"
	"github.com/bobarin/storyteller/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "api")

const (
	defaultDurationSeconds = 30.0
	maxDurationSeconds     = 300.0
	defaultBackgroundStyle = "minecraft"
	maxPromptLength        = 1000
	downloadURLTTL         = 3600
)

// ScriptGenerator writes a story script for a prompt.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, prompt, genre, style string, targetSeconds float64) (*services.Script, error)
}

type Handler struct {
	db      *db.DB
	queue   *queue.Queue
	storage *storage.Storage
	scripts ScriptGenerator
	catalog *render.BackgroundCatalog
}

func NewHandler(database *db.DB, q *queue.Queue, stor *storage.Storage, scripts ScriptGenerator, catalog *render.BackgroundCatalog) *Handler {
	if catalog == nil {
		catalog = render.NewBackgroundCatalog("")
	}
	return &Handler{
		db:      database,
		queue:   q,
		storage: stor,
		scripts: scripts,
		catalog: catalog,
	}
}

// GenerateScript handles POST /v1/generate-script
func (h *Handler) GenerateScript(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateScriptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		respondError(w, http.StatusBadRequest, "Prompt is required")
		return
	}
	if len(req.Prompt) > maxPromptLength {
		respondError(w, http.StatusBadRequest, "Prompt is too long")
		return
	}

	duration := defaultDurationSeconds
	if req.DurationSeconds != nil {
		duration = *req.DurationSeconds
	}
	if msg := validateDuration(duration); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	background := strings.ToLower(strings.TrimSpace(req.BackgroundStyle))
	if background == "" {
		background = defaultBackgroundStyle
	}
	if !h.knownBackground(background) {
		respondError(w, http.StatusBadRequest, "Unknown background style")
		return
	}

	script, err := h.scripts.GenerateScript(r.Context(), req.Prompt, req.Genre, req.Style, duration)
	if err != nil {
		log.Errorf("script generation failed: %v", err)
		respondError(w, http.StatusBadGateway, "Script generation failed")
		return
	}

	project := &models.Project{
		ID:              uuid.New(),
		Title:           script.Title,
		Description:     script.Description,
		Intro:           script.Intro,
		Prompt:          req.Prompt,
		Genre:           req.Genre,
		Style:           req.Style,
		DurationSeconds: duration,
		BackgroundStyle: background,
		Status:          models.ProjectStatusDraft,
	}
	scenes := ScenesFromScript(project.ID, script)

	if err := h.db.CreateProjectWithScenes(r.Context(), project, scenes); err != nil {
		log.Errorf("failed to create project: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, models.ProjectResponse{Project: *project, Scenes: scenes})
}

// ListProjects handles GET /v1/projects
// Query params:
//   - status: filter by project status
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" && !validProjectStatus(models.ProjectStatus(statusFilter)) {
		respondError(w, http.StatusBadRequest, "Invalid status filter. Allowed: "+strings.Join(projectStatusNames(), ", "))
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	total, err := h.db.CountProjects(r.Context(), statusFilter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count projects")
		return
	}

	projects, err := h.db.ListProjects(r.Context(), statusFilter, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	respondJSON(w, http.StatusOK, models.ListProjectsResponse{
		Projects: projects,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

// GetProject handles GET /v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondDBError(w, err, "Project")
		return
	}

	scenes, err := h.db.GetProjectScenes(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get scenes")
		return
	}
	if scenes == nil {
		scenes = []models.Scene{}
	}

	respondJSON(w, http.StatusOK, models.ProjectResponse{Project: *project, Scenes: scenes})
}

// UpdateProject handles PUT /v1/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DurationSeconds != nil {
		if msg := validateDuration(*req.DurationSeconds); msg != "" {
			respondError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if req.BackgroundStyle != nil {
		style := strings.ToLower(strings.TrimSpace(*req.BackgroundStyle))
		if !h.knownBackground(style) {
			respondError(w, http.StatusBadRequest, "Unknown background style")
			return
		}
		req.BackgroundStyle = &style
	}

	if err := h.db.UpdateProject(r.Context(), projectID, req); err != nil {
		respondDBError(w, err, "Project")
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondDBError(w, err, "Project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// DeleteProject handles DELETE /v1/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondDBError(w, err, "Project")
		return
	}

	if err := h.db.DeleteProject(r.Context(), projectID); err != nil {
		respondDBError(w, err, "Project")
		return
	}

	// Stored objects are best-effort; the rows are already gone.
	if project.VideoPath != nil {
		if err := h.storage.Delete(r.Context(), *project.VideoPath); err != nil {
			log.WithField("project", projectID).Warnf("failed to delete video object: %v", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateScene handles PUT /v1/scenes/{id}
func (h *Handler) UpdateScene(w http.ResponseWriter, r *http.Request) {
	sceneID, ok := urlUUID(w, r, "id", "scene")
	if !ok {
		return
	}

	var req models.UpdateSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Action == nil && req.Dialogue == nil && req.VoiceOver == nil && req.VisualPrompt == nil {
		respondError(w, http.StatusBadRequest, "No valid fields to update")
		return
	}

	if err := h.db.UpdateScene(r.Context(), sceneID, req); err != nil {
		respondDBError(w, err, "Scene")
		return
	}

	scene, err := h.db.GetScene(r.Context(), sceneID)
	if err != nil {
		respondDBError(w, err, "Scene")
		return
	}
	respondJSON(w, http.StatusOK, scene)
}

// DeleteScene handles DELETE /v1/scenes/{id}
func (h *Handler) DeleteScene(w http.ResponseWriter, r *http.Request) {
	sceneID, ok := urlUUID(w, r, "id", "scene")
	if !ok {
		return
	}

	if err := h.db.DeleteScene(r.Context(), sceneID); err != nil {
		respondDBError(w, err, "Scene")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProjectStatus handles GET /v1/projects/{id}/status
func (h *Handler) GetProjectStatus(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondDBError(w, err, "Project")
		return
	}

	jobs, err := h.db.GetProjectJobs(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get jobs")
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}

	respondJSON(w, http.StatusOK, models.ProjectStatusResponse{
		ProjectID:    project.ID,
		Status:       project.Status,
		VideoURL:     project.VideoURL,
		VoiceoverURL: project.VoiceoverURL,
		ErrorMessage: project.ErrorMessage,
		Jobs:         jobs,
	})
}

// GetProjectDownload handles GET /v1/projects/{id}/download
func (h *Handler) GetProjectDownload(w http.ResponseWriter, r *http.Request) {
	projectID, ok := urlUUID(w, r, "id", "project")
	if !ok {
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		respondDBError(w, err, "Project")
		return
	}

	if project.VideoPath == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	signedURL, err := h.storage.SignedURL(r.Context(), *project.VideoPath, downloadURLTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	http.Redirect(w, r, signedURL, http.StatusTemporaryRedirect)
}

// ListBackgrounds handles GET /v1/backgrounds
func (h *Handler) ListBackgrounds(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"backgrounds": h.catalog.Styles()})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ScenesFromScript turns generated script scenes into scene rows.
func ScenesFromScript(projectID uuid.UUID, script *services.Script) []models.Scene {
	return lo.Map(script.Scenes, func(s services.ScriptScene, i int) models.Scene {
		return models.Scene{
			ID:           uuid.New(),
			ProjectID:    projectID,
			SceneNumber:  i + 1,
			Action:       s.Action,
			Dialogue:     s.Dialogue,
			VoiceOver:    s.VoiceOver,
			VisualPrompt: s.VisualPrompt,
		}
	})
}

func (h *Handler) knownBackground(style string) bool {
	_, ok := h.catalog.Lookup(style)
	return ok
}

func validateDuration(d float64) string {
	if math.IsNaN(d) || d <= 0 || d > maxDurationSeconds {
		return "duration_seconds must be between 0 and 300"
	}
	return ""
}

var projectStatuses = []models.ProjectStatus{
	models.ProjectStatusDraft,
	models.ProjectStatusGenerating,
	models.ProjectStatusVoicing,
	models.ProjectStatusRendering,
	models.ProjectStatusCompleted,
	models.ProjectStatusFailed,
}

func validProjectStatus(s models.ProjectStatus) bool {
	return lo.Contains(projectStatuses, s)
}

func projectStatusNames() []string {
	return lo.Map(projectStatuses, func(s models.ProjectStatus, _ int) string { return string(s) })
}

// urlUUID parses a chi URL param, writing a 400 on failure.
func urlUUID(w http.ResponseWriter, r *http.Request, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// decodeOptional decodes a JSON body that may be empty.
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func respondDBError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, what+" not found")
		return
	}
	log.Errorf("%s query failed: %v", strings.ToLower(what), err)
	respondError(w, http.StatusInternalServerError, "Failed to load "+strings.ToLower(what))
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
