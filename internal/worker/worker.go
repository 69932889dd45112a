package worker

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bobarin/storyteller/internal/db"
	"github.com/bobarin/storyteller/internal/models"
	"github.com/bobarin/storyteller/internal/queue"
	"github.com/bobarin/storyteller/internal/render"
	"github.com/bobarin/storyteller/internal/services"
	"github.com/bobarin/storyteller/internal/storage"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("component", "worker")

const (
	defaultDurationSeconds = 30.0
	imageConcurrency       = 3
	voiceoverURLTTL        = 365 * 24 * 60 * 60
)

// Renderer turns a render request into a published video.
type Renderer interface {
	Render(ctx context.Context, req render.RenderRequest) (*render.RenderResult, error)
}

// ImageGenerator produces one scene image for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (*services.GeneratedImage, error)
}

type Worker struct {
	db        *db.DB
	queue     *queue.Queue
	storage   *storage.Storage
	images    ImageGenerator
	speech    services.SpeechSynthesizer
	renderer  Renderer
	uploadSem chan struct{} // limits concurrent Supabase uploads
}

func New(
	database *db.DB,
	q *queue.Queue,
	stor *storage.Storage,
	images ImageGenerator,
	speech services.SpeechSynthesizer,
	renderer Renderer,
) *Worker {
	return &Worker{
		db:        database,
		queue:     q,
		storage:   stor,
		images:    images,
		speech:    speech,
		renderer:  renderer,
		uploadSem: make(chan struct{}, 4),
	}
}

// uploadWithLimit wraps an upload call with a semaphore to prevent Supabase congestion.
func (w *Worker) uploadWithLimit(ctx context.Context, label string, fn func() error) error {
	select {
	case w.uploadSem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled while waiting for slot: %w", ctx.Err())
	}
	defer func() { <-w.uploadSem }()

	log.Debugf("%s uploading...", label)
	return fn()
}

// Start begins processing jobs from all queues and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Infof("worker started with concurrency: %d", concurrency)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, queue.QueueGenerateImages, w.handleGenerateImages)
		go w.processQueue(ctx, queue.QueueGenerateVoiceover, w.handleGenerateVoiceover)
		go w.processQueue(ctx, queue.QueueRenderVideo, w.handleRenderVideo)
	}

	<-ctx.Done()
	log.Info("worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithField("queue", queueName).Errorf("error dequeuing: %v", err)
				time.Sleep(time.Second)
				continue
			}
			if job == nil {
				continue
			}

			jlog := log.WithFields(logrus.Fields{"job": job.ID, "type": job.Type, "project": job.ProjectID})
			jlog.Info("processing job")

			if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobStatusRunning); err != nil {
				jlog.Warnf("failed to update job status: %v", err)
			}

			if err := handler(ctx, job); err != nil {
				jlog.Errorf("job failed: %v", err)
				if dbErr := w.db.UpdateJobError(ctx, job.ID, err.Error()); dbErr != nil {
					jlog.Warnf("failed to record job error: %v", dbErr)
				}
				continue
			}

			jlog.Info("job completed successfully")
			if err := w.db.UpdateJobStatus(ctx, job.ID, models.JobStatusSucceeded); err != nil {
				jlog.Warnf("failed to update job status: %v", err)
			}
		}
	}
}

// handleGenerateImages creates images for every scene of a project, or for
// the single scene named by the job.
func (w *Worker) handleGenerateImages(ctx context.Context, job *queue.Job) error {
	var scenes []models.Scene
	if job.SceneID != nil {
		scene, err := w.db.GetScene(ctx, *job.SceneID)
		if err != nil {
			return fmt.Errorf("failed to get scene: %w", err)
		}
		scenes = []models.Scene{*scene}
	} else {
		var err error
		scenes, err = w.db.GetProjectScenes(ctx, job.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to get scenes: %w", err)
		}
	}
	if len(scenes) == 0 {
		return fmt.Errorf("project has no scenes")
	}

	if err := w.db.UpdateProjectStatus(ctx, job.ProjectID, models.ProjectStatusGenerating); err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	stylePrefix := ""
	if job.Image != nil {
		stylePrefix = job.Image.StylePrefix
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageConcurrency)
	for _, scene := range scenes {
		g.Go(func() error {
			return w.generateSceneImage(gctx, scene, stylePrefix)
		})
	}
	if err := g.Wait(); err != nil {
		w.failProject(ctx, job.ProjectID, err)
		return err
	}

	return w.db.UpdateProjectStatus(ctx, job.ProjectID, models.ProjectStatusDraft)
}

func (w *Worker) generateSceneImage(ctx context.Context, scene models.Scene, stylePrefix string) error {
	prompt := ScenePrompt(scene.VisualPrompt, stylePrefix)
	slog := log.WithFields(logrus.Fields{"project": scene.ProjectID, "scene": scene.SceneNumber})
	slog.Info("generating image")

	img, err := w.images.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("scene %d: image generation failed: %w", scene.SceneNumber, err)
	}

	var imagePath string
	if img.StoragePath != "" {
		imagePath = img.StoragePath
		asset := &models.Asset{
			ID:            uuid.New(),
			ProjectID:     scene.ProjectID,
			SceneID:       &scene.ID,
			Type:          models.AssetTypeImage,
			StorageBucket: w.storage.Bucket,
			StoragePath:   img.StoragePath,
			ContentType:   strPtr("image/png"),
		}
		if err := w.db.CreateAsset(ctx, asset); err != nil {
			slog.Warnf("failed to save image asset: %v", err)
		}
	}

	if err := w.db.UpdateSceneImage(ctx, scene.ID, img.URL, imagePath); err != nil {
		return fmt.Errorf("scene %d: failed to save image: %w", scene.SceneNumber, err)
	}
	slog.WithField("provider", img.Provider).Info("image ready")
	return nil
}

// handleGenerateVoiceover narrates the whole project and stores the MP3.
func (w *Worker) handleGenerateVoiceover(ctx context.Context, job *queue.Job) error {
	if err := w.db.UpdateProjectStatus(ctx, job.ProjectID, models.ProjectStatusVoicing); err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	scenes, err := w.db.GetProjectScenes(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to get scenes: %w", err)
	}

	text := services.JoinNarration(lo.Map(scenes, func(s models.Scene, _ int) string {
		return s.Narration()
	}))
	if text == "" {
		err := errors.New("no narration text in any scene")
		w.failProject(ctx, job.ProjectID, err)
		return err
	}

	speech, err := w.speech.GenerateSpeech(ctx, text)
	if err != nil {
		w.failProject(ctx, job.ProjectID, err)
		return fmt.Errorf("failed to generate speech: %w", err)
	}

	asset := &models.Asset{
		ID:            uuid.New(),
		ProjectID:     job.ProjectID,
		Type:          models.AssetTypeVoiceover,
		StorageBucket: w.storage.Bucket,
		StoragePath:   w.storage.GenerateStoragePath(job.ProjectID, fmt.Sprintf("voiceover_%s.%s", uuid.NewString(), speech.Format)),
		ContentType:   strPtr("audio/mpeg"),
		ByteSize:      int64Ptr(int64(len(speech.AudioData))),
	}

	if err := w.uploadWithLimit(ctx, "voiceover", func() error {
		return w.storage.Upload(ctx, asset.StoragePath, speech.AudioData, "audio/mpeg")
	}); err != nil {
		w.failProject(ctx, job.ProjectID, err)
		return fmt.Errorf("failed to upload voiceover: %w", err)
	}

	url, err := w.objectURL(ctx, asset.StoragePath)
	if err != nil {
		w.failProject(ctx, job.ProjectID, err)
		return err
	}

	if err := w.db.CreateAsset(ctx, asset); err != nil {
		return fmt.Errorf("failed to save voiceover asset: %w", err)
	}
	return w.db.SetProjectVoiceover(ctx, job.ProjectID, url)
}

// handleRenderVideo runs the render pipeline for a project.
func (w *Worker) handleRenderVideo(ctx context.Context, job *queue.Job) error {
	if err := w.db.UpdateProjectStatus(ctx, job.ProjectID, models.ProjectStatusRendering); err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	project, err := w.db.GetProject(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	scenes, err := w.db.GetProjectScenes(ctx, job.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to get scenes: %w", err)
	}

	opts := queue.RenderOptions{}
	if job.Render != nil {
		opts = *job.Render
	}
	req := BuildRenderRequest(project, scenes, opts)

	result, err := w.renderer.Render(ctx, req)
	if err != nil {
		w.failProject(ctx, job.ProjectID, err)
		return fmt.Errorf("render failed: %w", err)
	}

	asset := &models.Asset{
		ID:            uuid.New(),
		ProjectID:     job.ProjectID,
		Type:          models.AssetTypeFinalVideo,
		StorageBucket: w.storage.Bucket,
		StoragePath:   result.StoragePath,
		ContentType:   strPtr("video/mp4"),
		ByteSize:      int64Ptr(result.ByteSize),
	}
	if err := w.db.CreateAsset(ctx, asset); err != nil {
		log.WithField("project", job.ProjectID).Warnf("failed to save video asset: %v", err)
	}

	log.WithField("project", job.ProjectID).Infof("video ready: %s", result.VideoURL)
	return w.db.SetProjectVideo(ctx, job.ProjectID, result.VideoURL, result.StoragePath)
}

// BuildRenderRequest maps a stored project onto a render request, applying
// per-render overrides from opts.
func BuildRenderRequest(project *models.Project, scenes []models.Scene, opts queue.RenderOptions) render.RenderRequest {
	duration := project.DurationSeconds
	if duration <= 0 {
		duration = defaultDurationSeconds
	}

	req := render.RenderRequest{
		TotalDurationSeconds: duration,
		BackgroundStyle:      project.BackgroundStyle,
		AudioRef:             project.VoiceoverURL,
		Scenes: lo.Map(scenes, func(s models.Scene, _ int) render.Scene {
			return render.Scene{
				SceneNumber: s.SceneNumber,
				ImageRef:    s.ImageURL,
				StorageKey:  lo.FromPtr(s.ImagePath),
			}
		}),
	}

	if opts.BackgroundStyle != nil && *opts.BackgroundStyle != "" {
		req.BackgroundStyle = *opts.BackgroundStyle
	}
	if opts.AudioURL != nil && *opts.AudioURL != "" {
		req.AudioRef = opts.AudioURL
	}

	switch {
	case opts.Subtitles != nil && strings.TrimSpace(*opts.Subtitles) != "":
		req.SubtitleText = opts.Subtitles
	case opts.AutoSubtitles:
		// one caption per rendered scene, on the same even split as the images
		rendered := lo.Filter(scenes, func(s models.Scene, _ int) bool {
			return s.ImageURL != nil && strings.TrimSpace(*s.ImageURL) != ""
		})
		texts := lo.Map(rendered, func(s models.Scene, _ int) string { return s.Narration() })
		if cues := render.SceneCues(texts, duration); len(cues) > 0 {
			srt := render.FormatSRT(cues)
			req.SubtitleText = &srt
		}
	}

	return req
}

// ScenePrompt prefixes a visual prompt with an optional style modifier.
func ScenePrompt(visualPrompt, stylePrefix string) string {
	visualPrompt = strings.TrimSpace(visualPrompt)
	if stylePrefix = strings.TrimSpace(stylePrefix); stylePrefix != "" {
		return stylePrefix + ", " + visualPrompt
	}
	return visualPrompt
}

func (w *Worker) objectURL(ctx context.Context, key string) (string, error) {
	if u, err := w.storage.PublicURL(ctx, key); err == nil {
		return u, nil
	}
	u, err := w.storage.SignedURL(ctx, key, voiceoverURLTTL)
	if err != nil {
		return "", fmt.Errorf("no URL for %s: %w", path.Base(key), err)
	}
	return u, nil
}

func (w *Worker) failProject(ctx context.Context, projectID uuid.UUID, cause error) {
	if err := w.db.UpdateProjectError(ctx, projectID, cause.Error()); err != nil {
		log.WithField("project", projectID).Warnf("failed to record project error: %v", err)
	}
}

func strPtr(s string) *string {
	return &s
}

func int64Ptr(i int64) *int64 {
	return &i
}
