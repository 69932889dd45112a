package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bobarin/storyteller/internal/models"
	"github.com/google/uuid"
)

const jobColumns = `
	id, project_id, scene_id, type, status, attempts, options,
	started_at, finished_at, error_message, created_at
`

func scanJob(row rowScanner, job *models.Job) error {
	return row.Scan(
		&job.ID, &job.ProjectID, &job.SceneID, &job.Type, &job.Status,
		&job.Attempts, &job.Options, &job.StartedAt, &job.FinishedAt,
		&job.ErrorMessage, &job.CreatedAt,
	)
}

func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (
			id, project_id, scene_id, type, status, attempts, options
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	var options interface{}
	if job.Options != nil {
		options = job.Options
	}

	return db.QueryRowContext(
		ctx, query,
		job.ID, job.ProjectID, job.SceneID, job.Type, job.Status, job.Attempts, options,
	).Scan(&job.CreatedAt)
}

func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job := &models.Job{}
	err := scanJob(db.QueryRowContext(ctx, query, id), job)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

func (db *DB) GetProjectJobs(ctx context.Context, projectID uuid.UUID) ([]models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE project_id = $1 ORDER BY created_at`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		var job models.Job
		if err := scanJob(rows, &job); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func (db *DB) UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) error {
	now := time.Now()
	query := `UPDATE jobs SET status = $1, started_at = $2, attempts = attempts + 1 WHERE id = $3`

	if status == models.JobStatusSucceeded || status == models.JobStatusFailed {
		query = `UPDATE jobs SET status = $1, finished_at = $2 WHERE id = $3`
	}

	_, err := db.ExecContext(ctx, query, status, now, id)
	return err
}

func (db *DB) UpdateJobError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.JobStatusFailed, errorMessage, time.Now(), id)
	return err
}
