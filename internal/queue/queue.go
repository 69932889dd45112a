package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobarin/storyteller/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueGenerateImages    = "queue:generate_images"
	QueueGenerateVoiceover = "queue:generate_voiceover"
	QueueRenderVideo       = "queue:render_video"
)

// Queues lists every queue the worker drains.
var Queues = []string{QueueGenerateImages, QueueGenerateVoiceover, QueueRenderVideo}

type Queue struct {
	client *redis.Client
}

// RenderOptions are the per-render overrides carried by a render job.
type RenderOptions struct {
	BackgroundStyle *string `json:"background_style,omitempty"`
	Subtitles       *string `json:"subtitles,omitempty"`
	AutoSubtitles   bool    `json:"auto_subtitles,omitempty"`
	AudioURL        *string `json:"audio_url,omitempty"`
}

// ImageOptions are carried by image generation jobs.
type ImageOptions struct {
	StylePrefix string `json:"style_prefix,omitempty"`
}

type Job struct {
	ID        uuid.UUID      `json:"id"`
	Type      models.JobType `json:"type"`
	ProjectID uuid.UUID      `json:"project_id"`
	SceneID   *uuid.UUID     `json:"scene_id,omitempty"` // image jobs for a single scene
	Render    *RenderOptions `json:"render,omitempty"`
	Image     *ImageOptions  `json:"image,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, queueName, data).Err()
}

func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	return decodeJob([]byte(result[1]))
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// QueueForType maps a job type to the Redis list it travels on.
func QueueForType(t models.JobType) (string, error) {
	switch t {
	case models.JobTypeGenerateImages:
		return QueueGenerateImages, nil
	case models.JobTypeGenerateVoiceover:
		return QueueGenerateVoiceover, nil
	case models.JobTypeRenderVideo:
		return QueueRenderVideo, nil
	}
	return "", fmt.Errorf("unknown job type %q", t)
}

// EnqueueGenerateImages enqueues image generation for a whole project, or a
// single scene when sceneID is set.
func (q *Queue) EnqueueGenerateImages(ctx context.Context, projectID, jobID uuid.UUID, sceneID *uuid.UUID, opts *ImageOptions) error {
	job := &Job{
		ID:        jobID,
		Type:      models.JobTypeGenerateImages,
		ProjectID: projectID,
		SceneID:   sceneID,
		Image:     opts,
	}
	return q.Enqueue(ctx, QueueGenerateImages, job)
}

// EnqueueGenerateVoiceover enqueues narration synthesis for a project
func (q *Queue) EnqueueGenerateVoiceover(ctx context.Context, projectID, jobID uuid.UUID) error {
	job := &Job{
		ID:        jobID,
		Type:      models.JobTypeGenerateVoiceover,
		ProjectID: projectID,
	}
	return q.Enqueue(ctx, QueueGenerateVoiceover, job)
}

// EnqueueRenderVideo enqueues a final video render
func (q *Queue) EnqueueRenderVideo(ctx context.Context, projectID, jobID uuid.UUID, opts RenderOptions) error {
	job := &Job{
		ID:        jobID,
		Type:      models.JobTypeRenderVideo,
		ProjectID: projectID,
		Render:    &opts,
	}
	return q.Enqueue(ctx, QueueRenderVideo, job)
}

func encodeJob(job *Job) ([]byte, error) {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return data, nil
}

func decodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.ID == uuid.Nil || job.ProjectID == uuid.Nil {
		return nil, fmt.Errorf("job is missing id or project_id")
	}
	return &job, nil
}
