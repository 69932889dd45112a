package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bobarin/storyteller/internal/models"
	"github.com/google/uuid"
)

const projectColumns = `
	id, title, description, intro, prompt, genre, tone, style,
	duration_seconds, background_style, status, voiceover_url,
	video_url, video_path, error_message, created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner, p *models.Project) error {
	return row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Intro, &p.Prompt, &p.Genre,
		&p.Tone, &p.Style, &p.DurationSeconds, &p.BackgroundStyle,
		&p.Status, &p.VoiceoverURL, &p.VideoURL, &p.VideoPath,
		&p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (db *DB) CreateProject(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (
			id, title, description, intro, prompt, genre, tone, style,
			duration_seconds, background_style, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		project.ID, project.Title, project.Description, project.Intro,
		project.Prompt, project.Genre, project.Tone, project.Style,
		project.DurationSeconds, project.BackgroundStyle, project.Status,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
}

// CreateProjectWithScenes inserts a project and its scenes in one transaction.
func (db *DB) CreateProjectWithScenes(ctx context.Context, project *models.Project, scenes []models.Scene) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO projects (
			id, title, description, intro, prompt, genre, tone, style,
			duration_seconds, background_style, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		project.ID, project.Title, project.Description, project.Intro,
		project.Prompt, project.Genre, project.Tone, project.Style,
		project.DurationSeconds, project.BackgroundStyle, project.Status,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	for i := range scenes {
		s := &scenes[i]
		err := tx.QueryRowContext(ctx, insertSceneQuery,
			s.ID, s.ProjectID, s.SceneNumber, s.Action, s.Dialogue,
			s.VoiceOver, s.VisualPrompt, s.ImageURL, s.ImagePath,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert scene %d: %w", s.SceneNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project: %w", err)
	}
	return nil
}

func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	project := &models.Project{}
	err := scanProject(db.QueryRowContext(ctx, query, id), project)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// ListProjects returns projects ordered by creation date (newest first).
// Supports optional status filter, limit, and offset for pagination.
func (db *DB) ListProjects(ctx context.Context, status string, limit, offset int) ([]models.Project, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseSelect := `SELECT ` + projectColumns + ` FROM projects`

	if status != "" {
		query := baseSelect + ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = db.QueryContext(ctx, query, status, limit, offset)
	} else {
		query := baseSelect + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = db.QueryContext(ctx, query, limit, offset)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var p models.Project
		if err := scanProject(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// CountProjects returns the total number of projects, optionally filtered by status.
func (db *DB) CountProjects(ctx context.Context, status string) (int, error) {
	var count int
	if status != "" {
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE status = $1`, status).Scan(&count)
		return count, err
	}
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count)
	return count, err
}

// UpdateProject applies the non-nil fields of req.
func (db *DB) UpdateProject(ctx context.Context, id uuid.UUID, req models.UpdateProjectRequest) error {
	var (
		sets []string
		args []interface{}
	)
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Title != nil {
		add("title", *req.Title)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.Intro != nil {
		add("intro", *req.Intro)
	}
	if req.Tone != nil {
		add("tone", *req.Tone)
	}
	if req.Style != nil {
		add("style", *req.Style)
	}
	if req.DurationSeconds != nil {
		add("duration_seconds", *req.DurationSeconds)
	}
	if req.BackgroundStyle != nil {
		add("background_style", *req.BackgroundStyle)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE projects SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return expectRow(res, "project")
}

func (db *DB) DeleteProject(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return expectRow(res, "project")
}

func (db *DB) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	query := `UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

func (db *DB) UpdateProjectError(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE projects
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, models.ProjectStatusFailed, errorMessage, id)
	return err
}

func (db *DB) SetProjectVoiceover(ctx context.Context, id uuid.UUID, url string) error {
	query := `
		UPDATE projects
		SET voiceover_url = $1, status = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, url, models.ProjectStatusDraft, id)
	return err
}

func (db *DB) SetProjectVideo(ctx context.Context, id uuid.UUID, url, path string) error {
	query := `
		UPDATE projects
		SET video_url = $1, video_path = $2, status = $3, error_message = NULL, updated_at = NOW()
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, url, path, models.ProjectStatusCompleted, id)
	return err
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return nil
}
