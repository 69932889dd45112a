package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Server
	APIPort            string
	WorkerEnabled      bool
	BackendAPIKey      string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins string // Comma-separated allowed origins (empty = *, dev mode)

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (script generation)
	OpenAIKey   string
	OpenAIModel string

	// Gemini (scene images via Imagen)
	GeminiKey   string
	ImagenModel string

	// ElevenLabs (voiceover)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Rendering
	RenderTempDir         string
	BackgroundCatalogPath string // optional YAML overriding the built-in background styles
	BackgroundDir         string
	RenderSceneWorkers    int

	// Worker
	MaxConcurrentJobs int

	// Logging
	LogLevel  string
	LogFormat string // text or json
}

// Load reads the full service configuration.
func Load() (*Config, error) {
	cfg := fromEnv()

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	// Generation keys are only needed where jobs actually run
	if cfg.WorkerEnabled {
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required")
		}
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required")
		}
	}

	if err := cfg.validateWorkers(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRender reads the subset needed to render and publish a video:
// storage and render settings only.
func LoadRender() (*Config, error) {
	cfg := fromEnv()

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}
	if err := cfg.validateWorkers(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	return &Config{
		APIPort:               getEnv("API_PORT", "8080"),
		WorkerEnabled:         getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:         getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:    getEnv("CORS_ALLOWED_ORIGINS", ""),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:           strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "videos"),
		OpenAIKey:             getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiKey:             getEnv("GEMINI_API_KEY", ""),
		ImagenModel:           getEnv("IMAGEN_MODEL", "imagen-4.0-generate-001"),
		ElevenLabsKey:         getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:     getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		RenderTempDir:         getEnv("RENDER_TEMP_DIR", "/tmp/storyteller"),
		BackgroundCatalogPath: getEnv("BACKGROUND_CATALOG_PATH", ""),
		BackgroundDir:         getEnv("BACKGROUND_DIR", "assets/backgrounds"),
		RenderSceneWorkers:    getEnvInt("RENDER_SCENE_WORKERS", 4),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 2),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "text"),
	}
}

func (c *Config) validateWorkers() error {
	if c.RenderSceneWorkers < 1 {
		return fmt.Errorf("RENDER_SCENE_WORKERS must be >= 1, got %d", c.RenderSceneWorkers)
	}
	if c.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be >= 1, got %d", c.MaxConcurrentJobs)
	}
	return nil
}

// SetupLogging applies the configured level and output format to the
// standard logrus logger.
func SetupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	logrus.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q (want text or json)", format)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
