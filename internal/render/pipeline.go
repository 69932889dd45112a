package render

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ObjectStore is everything the pipeline needs from object storage.
type ObjectStore interface {
	ObjectReader
	ObjectWriter
}

// Options configures a Pipeline built with New.
type Options struct {
	ScratchDir   string
	SceneWorkers int
	Catalog      *BackgroundCatalog
	// LocalFiles lets scene and audio references name files on this host.
	LocalFiles bool
}

// Pipeline assembles a video from a RenderRequest and publishes it.
// A Pipeline is safe for concurrent use; each Render gets its own scratch files.
type Pipeline struct {
	builder    *TimelineBuilder
	encoder    Encoder
	publisher  *Publisher
	scratchDir string
}

// New wires the production pipeline: HTTP/storage fetching, ffmpeg encoding
// and storage publishing.
func New(store ObjectStore, opts Options) *Pipeline {
	ff := NewFFmpeg()
	var fetchOpts []FetchOption
	if opts.LocalFiles {
		fetchOpts = append(fetchOpts, WithLocalFiles())
	}
	builder := NewTimelineBuilder(NewFetcher(store, fetchOpts...), ff, opts.Catalog, opts.SceneWorkers)
	return NewPipeline(builder, ff, NewPublisher(store), opts.ScratchDir)
}

func NewPipeline(builder *TimelineBuilder, encoder Encoder, publisher *Publisher, scratchDir string) *Pipeline {
	return &Pipeline{
		builder:    builder,
		encoder:    encoder,
		publisher:  publisher,
		scratchDir: scratchDir,
	}
}

// Render runs validate, build, encode and publish. Every intermediate file
// is removed before it returns, on success or failure.
func (p *Pipeline) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	if err := req.Validate(); err != nil {
		return nil, stageError(StageValidate, err)
	}
	if len(req.RenderableScenes()) == 0 {
		return nil, stageError(StageValidate, ErrNoRenderableScenes)
	}

	started := time.Now()
	log.Infof("render started: %d scenes, %.2fs, background=%q", len(req.Scenes), req.TotalDurationSeconds, req.BackgroundStyle)

	scratch, err := NewScratch(p.scratchDir)
	if err != nil {
		return nil, stageError(StageTimeline, err)
	}
	defer scratch.Cleanup()

	tl, err := p.builder.Build(ctx, req, scratch)
	if err != nil {
		return nil, stageError(StageTimeline, err)
	}

	out := scratch.Path(".mp4")
	err = p.encoder.Encode(ctx, tl, out)
	if err != nil && tl.SubtitlePath != "" && ctx.Err() == nil {
		log.Warnf("encode with subtitles failed, retrying without them: %v", err)
		tl.SubtitlePath = ""
		tl.Cues = nil
		err = p.encoder.Encode(ctx, tl, out)
	}
	if err != nil {
		if !errors.Is(err, ErrEncode) {
			err = fmt.Errorf("%w: %w", ErrEncode, err)
		}
		return nil, stageError(StageEncode, err)
	}

	result, err := p.publisher.Publish(ctx, out)
	if err != nil {
		return nil, stageError(StagePublish, err)
	}
	result.Duration = tl.Duration

	log.WithField("url", result.VideoURL).Infof("render finished in %v", time.Since(started).Round(time.Millisecond))
	return result, nil
}
