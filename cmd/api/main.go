package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/storyteller/internal/api"
	"github.com/bobarin/storyteller/internal/config"
	"github.com/bobarin/storyteller/internal/db"
	"github.com/bobarin/storyteller/internal/queue"
	"github.com/bobarin/storyteller/internal/render"
	"github.com/bobarin/storyteller/internal/services"
	"github.com/bobarin/storyteller/internal/storage"
	"github.com/bobarin/storyteller/internal/worker"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	log.Info("Starting Storyteller API...")

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.EnsureSchema(schemaCtx)
	schemaCancel()
	if err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}
	log.Info("Connected to database")

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Info("Connected to Redis queue")

	stor := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	log.WithField("bucket", cfg.SupabaseStorageBucket).Info("Initialized Supabase storage")

	catalog, err := render.LoadBackgroundCatalog(cfg.BackgroundCatalogPath, cfg.BackgroundDir)
	if err != nil {
		log.Fatalf("Failed to load background catalog: %v", err)
	}
	log.Infof("Background styles: %v", catalog.Styles())

	scripts := services.NewScriptService(cfg.OpenAIKey, cfg.OpenAIModel)

	handler := api.NewHandler(database, q, stor, scripts, catalog)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Info("API key authentication enabled")
	} else {
		log.Warn("No BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	var workerCancel context.CancelFunc
	if cfg.WorkerEnabled {
		log.Info("Worker enabled, starting background processing...")

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())

		images, err := services.NewImageService(workerCtx, cfg.GeminiKey, cfg.ImagenModel, stor)
		if err != nil {
			log.Fatalf("Failed to create image service: %v", err)
		}
		speech := services.NewSpeechService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID)
		pipeline := render.New(stor, render.Options{
			ScratchDir:   cfg.RenderTempDir,
			SceneWorkers: cfg.RenderSceneWorkers,
			Catalog:      catalog,
		})

		w := worker.New(database, q, stor, images, speech, pipeline)
		go w.Start(workerCtx, cfg.MaxConcurrentJobs)
	}

	go func() {
		log.Infof("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
