package render

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the pipeline. Every fatal error returned from
// Pipeline.Render wraps exactly one of these, so callers can branch with
// errors.Is while still seeing the underlying cause.
var (
	ErrInvalidRequest     = errors.New("invalid render request")
	ErrNoRenderableScenes = errors.New("no scenes with images to render")
	ErrAssetUnavailable   = errors.New("asset unavailable")
	ErrInvalidImage       = errors.New("invalid scene image")
	ErrSubtitleFormat     = errors.New("subtitle format error")
	ErrEncode             = errors.New("encode failed")
	ErrPublish            = errors.New("publish failed")
)

// Stage names the pipeline step a fatal error came from.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageFetch     Stage = "fetch"
	StageComposite Stage = "composite"
	StageTimeline  Stage = "timeline"
	StageEncode    Stage = "encode"
	StagePublish   Stage = "publish"
)

// StageError carries the failing stage alongside the cause chain.
type StageError struct {
	Stage Stage
	Scene int // scene number for per-scene stages, 0 otherwise
	Err   error
}

func (e *StageError) Error() string {
	if e.Scene > 0 {
		return fmt.Sprintf("render %s (scene %d): %v", e.Stage, e.Scene, e.Err)
	}
	return fmt.Sprintf("render %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
