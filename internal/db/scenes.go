package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bobarin/storyteller/internal/models"
	"github.com/google/uuid"
)

const sceneColumns = `
	id, project_id, scene_number, action, dialogue, voice_over,
	visual_prompt, image_url, image_path, created_at, updated_at
`

const insertSceneQuery = `
	INSERT INTO scenes (
		id, project_id, scene_number, action, dialogue,
		voice_over, visual_prompt, image_url, image_path
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING created_at, updated_at
`

func scanScene(row rowScanner, s *models.Scene) error {
	return row.Scan(
		&s.ID, &s.ProjectID, &s.SceneNumber, &s.Action, &s.Dialogue,
		&s.VoiceOver, &s.VisualPrompt, &s.ImageURL, &s.ImagePath,
		&s.CreatedAt, &s.UpdatedAt,
	)
}

func (db *DB) CreateScene(ctx context.Context, scene *models.Scene) error {
	return db.QueryRowContext(
		ctx, insertSceneQuery,
		scene.ID, scene.ProjectID, scene.SceneNumber, scene.Action, scene.Dialogue,
		scene.VoiceOver, scene.VisualPrompt, scene.ImageURL, scene.ImagePath,
	).Scan(&scene.CreatedAt, &scene.UpdatedAt)
}

func (db *DB) GetScene(ctx context.Context, id uuid.UUID) (*models.Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE id = $1`

	scene := &models.Scene{}
	err := scanScene(db.QueryRowContext(ctx, query, id), scene)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scene %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}

	return scene, nil
}

// GetProjectScenes returns a project's scenes in scene_number order.
func (db *DB) GetProjectScenes(ctx context.Context, projectID uuid.UUID) ([]models.Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE project_id = $1 ORDER BY scene_number`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenes: %w", err)
	}
	defer rows.Close()

	scenes := []models.Scene{}
	for rows.Next() {
		var scene models.Scene
		if err := scanScene(rows, &scene); err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, scene)
	}

	return scenes, rows.Err()
}

// UpdateScene applies the non-nil fields of req.
func (db *DB) UpdateScene(ctx context.Context, id uuid.UUID, req models.UpdateSceneRequest) error {
	var (
		sets []string
		args []interface{}
	)
	add := func(col, v string) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Action != nil {
		add("action", *req.Action)
	}
	if req.Dialogue != nil {
		add("dialogue", *req.Dialogue)
	}
	if req.VoiceOver != nil {
		add("voice_over", *req.VoiceOver)
	}
	if req.VisualPrompt != nil {
		add("visual_prompt", *req.VisualPrompt)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE scenes SET %s, updated_at = NOW() WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update scene: %w", err)
	}
	return expectRow(res, "scene")
}

// UpdateSceneImage records a generated image. path is empty when the image
// is hosted outside our bucket.
func (db *DB) UpdateSceneImage(ctx context.Context, id uuid.UUID, url, path string) error {
	var imagePath *string
	if path != "" {
		imagePath = &path
	}
	query := `
		UPDATE scenes
		SET image_url = $1, image_path = $2, updated_at = NOW()
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, url, imagePath, id)
	return err
}

func (db *DB) DeleteScene(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM scenes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scene: %w", err)
	}
	return expectRow(res, "scene")
}
