// Command render builds one video from a JSON render request and publishes
// it to storage, bypassing the API and queue.
//
//	render -request req.json [-background subway] [-subtitles subs.srt]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobarin/storyteller/internal/config"
	"github.com/bobarin/storyteller/internal/render"
	"github.com/bobarin/storyteller/internal/storage"
	log "github.com/sirupsen/logrus"
)

func main() {
	requestPath := flag.String("request", "", "path to a JSON render request (required)")
	background := flag.String("background", "", "override the request's background style")
	subtitlesPath := flag.String("subtitles", "", "SRT file to burn in, replacing the request's subtitles")
	flag.Parse()

	if *requestPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadRender()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	req, err := readRequest(*requestPath, *background, *subtitlesPath)
	if err != nil {
		log.Fatal(err)
	}

	catalog, err := render.LoadBackgroundCatalog(cfg.BackgroundCatalogPath, cfg.BackgroundDir)
	if err != nil {
		log.Fatalf("Failed to load background catalog: %v", err)
	}

	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	pipeline := render.New(stor, render.Options{
		ScratchDir:   cfg.RenderTempDir,
		SceneWorkers: cfg.RenderSceneWorkers,
		Catalog:      catalog,
		LocalFiles:   true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Render(ctx, *req)
	if err != nil {
		var se *render.StageError
		if errors.As(err, &se) {
			log.WithField("stage", se.Stage).Fatalf("Render failed: %v", err)
		}
		log.Fatalf("Render failed: %v", err)
	}

	log.WithFields(log.Fields{
		"path":  result.StoragePath,
		"bytes": result.ByteSize,
	}).Infof("Rendered %.2fs video", result.Duration)
	fmt.Println(result.VideoURL)
}

func readRequest(path, background, subtitlesPath string) (*render.RenderRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}

	var req render.RenderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request %s: %w", path, err)
	}

	if background != "" {
		req.BackgroundStyle = background
	}
	if subtitlesPath != "" {
		srt, err := os.ReadFile(subtitlesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read subtitles: %w", err)
		}
		text := string(srt)
		req.SubtitleText = &text
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}
