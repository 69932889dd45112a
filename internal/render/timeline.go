package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const DefaultSceneWorkers = 4

// AssetSource resolves a reference (URL or path) to bytes.
type AssetSource interface {
	Fetch(ctx context.Context, ref, storageKeyHint string) ([]byte, error)
}

// TimelineBuilder turns a RenderRequest into a Timeline, materialising every
// input the encoder needs as a scratch file.
type TimelineBuilder struct {
	source   AssetSource
	prober   Prober
	catalog  *BackgroundCatalog
	canvas   Canvas
	workers  int
	writeASS func(cues []Cue, canvas Canvas, path string) error
}

func NewTimelineBuilder(source AssetSource, prober Prober, catalog *BackgroundCatalog, workers int) *TimelineBuilder {
	if workers < 1 {
		workers = DefaultSceneWorkers
	}
	if catalog == nil {
		catalog = NewBackgroundCatalog("")
	}
	return &TimelineBuilder{
		source:   source,
		prober:   prober,
		catalog:  catalog,
		canvas:   DefaultCanvas,
		workers:  workers,
		writeASS: WriteASS,
	}
}

// Build lays out the scenes evenly over the requested duration and attaches
// the background, narration and subtitles. Scene failures are fatal; audio
// and subtitle problems are logged and skipped.
func (b *TimelineBuilder) Build(ctx context.Context, req RenderRequest, scratch *Scratch) (*Timeline, error) {
	scenes := req.RenderableScenes()
	if len(scenes) == 0 {
		return nil, stageError(StageValidate, ErrNoRenderableScenes)
	}

	total := req.TotalDurationSeconds
	perScene := total / float64(len(scenes))
	log.Infof("building timeline: %d scenes, %.2fs total, %.2fs per scene", len(scenes), total, perScene)

	layers := make([]Layer, len(scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, scene := range scenes {
		g.Go(func() error {
			layer, err := b.sceneLayer(gctx, scene, scratch)
			if err != nil {
				return err
			}
			layer.Start = float64(i) * perScene
			layer.Duration = perScene
			layers[i] = layer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tl := &Timeline{
		Canvas:   b.canvas,
		Duration: total,
		Layers:   layers,
	}

	if req.AudioRef != nil && strings.TrimSpace(*req.AudioRef) != "" {
		tl.Audio = b.audioTrack(ctx, *req.AudioRef, scratch)
		if tl.Audio != nil && tl.Audio.Duration > tl.Duration {
			log.Infof("extending timeline to narration length: %.2fs -> %.2fs", tl.Duration, tl.Audio.Duration)
			tl.Duration = tl.Audio.Duration
		}
	}

	bg, err := b.catalog.Resolve(ctx, req.BackgroundStyle, b.prober, scratch, b.canvas)
	if err != nil {
		return nil, stageError(StageTimeline, fmt.Errorf("background: %w", err))
	}
	tl.Background = bg

	if req.SubtitleText != nil && strings.TrimSpace(*req.SubtitleText) != "" {
		tl.Cues = usableCues(*req.SubtitleText)
		if len(tl.Cues) > 0 {
			path := scratch.Path(".ass")
			if err := b.writeASS(tl.Cues, b.canvas, path); err != nil {
				log.Warnf("continuing without subtitles: %v", err)
				tl.Cues = nil
			} else {
				tl.SubtitlePath = path
			}
		}
	}

	return tl, nil
}

func (b *TimelineBuilder) sceneLayer(ctx context.Context, scene Scene, scratch *Scratch) (Layer, error) {
	logger := log.WithField("scene", scene.SceneNumber)

	data, err := b.source.Fetch(ctx, *scene.ImageRef, scene.StorageKey)
	if err != nil {
		return Layer{}, &StageError{Stage: StageFetch, Scene: scene.SceneNumber, Err: err}
	}
	logger.Debugf("fetched %d bytes", len(data))

	ov, err := Composite(data, b.canvas)
	if err != nil {
		return Layer{}, &StageError{Stage: StageComposite, Scene: scene.SceneNumber, Err: err}
	}

	path, err := writePNG(scratch, ov.Image)
	if err != nil {
		return Layer{}, &StageError{Stage: StageComposite, Scene: scene.SceneNumber, Err: err}
	}

	return Layer{
		SceneNumber: scene.SceneNumber,
		Path:        path,
		X:           ov.X,
		Y:           ov.Y,
		Width:       ov.Width,
		Height:      ov.Height,
	}, nil
}

// audioTrack fetches and probes the narration. nil means the video goes out silent.
func (b *TimelineBuilder) audioTrack(ctx context.Context, ref string, scratch *Scratch) *AudioTrack {
	data, err := b.source.Fetch(ctx, ref, "")
	if err != nil {
		log.Warnf("could not fetch voiceover, continuing without audio: %v", err)
		return nil
	}

	ext := strings.ToLower(filepath.Ext(strings.SplitN(ref, "?", 2)[0]))
	if ext == "" || len(ext) > 5 {
		ext = ".mp3"
	}
	path, err := scratch.Write(ext, data)
	if err != nil {
		log.Warnf("could not store voiceover, continuing without audio: %v", err)
		return nil
	}

	dur, err := b.prober.Duration(ctx, path)
	if err != nil {
		log.Warnf("could not probe voiceover duration: %v", err)
		dur = 0
	}
	return &AudioTrack{Path: path, Duration: dur}
}

// usableCues parses subtitle text and drops every block or cue that cannot
// be shown, logging each one.
func usableCues(text string) []Cue {
	parsed, errs := ParseSRTLenient(text)
	for _, err := range errs {
		log.Warnf("skipping subtitle block: %v", err)
	}

	cues := make([]Cue, 0, len(parsed))
	for _, c := range parsed {
		if c.End <= c.Start {
			log.Warnf("skipping subtitle cue with end %.3f <= start %.3f", c.End, c.Start)
			continue
		}
		cues = append(cues, c)
	}
	return cues
}
