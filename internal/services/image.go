package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const (
	defaultImagenModel = "imagen-4.0-generate-001"
	imageAttempts      = 3
	imageURLTTL        = 365 * 24 * 60 * 60

	pollinationsBaseURL = "https://image.pollinations.ai/prompt/"
	placeholderImageURL = "https://via.placeholder.com/768x1024/1a1a1a/ffffff?text=Image+Generation+Failed"

	// Pollinations chokes on long prompt paths
	maxFallbackPrompt = 200
)

// Image providers reported in GeneratedImage.Provider.
const (
	ProviderImagen       = "imagen"
	ProviderPollinations = "pollinations"
	ProviderPlaceholder  = "placeholder"
)

// ImageUploader is the slice of object storage the image service needs.
type ImageUploader interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(ctx context.Context, path string) (string, error)
	SignedURL(ctx context.Context, path string, expiresIn int) (string, error)
}

type imageBackend interface {
	generate(ctx context.Context, prompt string) (data []byte, mimeType string, err error)
}

// GeneratedImage is where a scene image ended up.
type GeneratedImage struct {
	URL         string
	StoragePath string // empty unless the image was uploaded to our bucket
	Provider    string
}

// ImageService turns visual prompts into scene image URLs. Imagen output is
// uploaded to storage; when Imagen is unavailable it degrades to a
// Pollinations URL and finally to a placeholder, so Generate only fails when
// the context is done.
type ImageService struct {
	backend  imageBackend
	store    ImageUploader
	client   *http.Client
	fallback string
	backoff  time.Duration
}

// NewImageService builds the service. An empty apiKey skips Imagen entirely.
func NewImageService(ctx context.Context, apiKey, model string, store ImageUploader) (*ImageService, error) {
	svc := &ImageService{
		store:    store,
		client:   &http.Client{Timeout: 10 * time.Second},
		fallback: pollinationsBaseURL,
		backoff:  time.Second,
	}
	if apiKey == "" {
		log.Warn("GEMINI_API_KEY not set, scene images will use the fallback provider")
		return svc, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = defaultImagenModel
	}
	svc.backend = &imagenBackend{client: client, model: model}
	return svc, nil
}

// Generate produces one image for prompt.
func (s *ImageService) Generate(ctx context.Context, prompt string) (*GeneratedImage, error) {
	if s.backend != nil {
		img, err := s.generateImagen(ctx, prompt)
		if err == nil {
			return img, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warnf("imagen failed after %d attempts, using fallback: %v", imageAttempts, err)
	}

	if u, ok := s.checkFallback(ctx, prompt); ok {
		return &GeneratedImage{URL: u, Provider: ProviderPollinations}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	log.Warn("fallback image provider unavailable, using placeholder")
	return &GeneratedImage{URL: placeholderImageURL, Provider: ProviderPlaceholder}, nil
}

func (s *ImageService) generateImagen(ctx context.Context, prompt string) (*GeneratedImage, error) {
	var lastErr error
	for attempt := 0; attempt < imageAttempts; attempt++ {
		if attempt > 0 {
			delay := s.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		data, mimeType, err := s.backend.generate(ctx, prompt)
		if err != nil {
			lastErr = err
			log.Warnf("imagen attempt %d/%d failed: %v", attempt+1, imageAttempts, err)
			continue
		}

		img, err := s.upload(ctx, data, mimeType)
		if err != nil {
			lastErr = err
			log.Warnf("imagen attempt %d/%d: %v", attempt+1, imageAttempts, err)
			continue
		}
		return img, nil
	}
	return nil, lastErr
}

func (s *ImageService) upload(ctx context.Context, data []byte, mimeType string) (*GeneratedImage, error) {
	if s.store == nil {
		return nil, errors.New("no image storage configured")
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	key := path.Join("images", uuid.NewString()+imageExtension(mimeType))

	if err := s.store.Upload(ctx, key, data, mimeType); err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	u, err := s.store.PublicURL(ctx, key)
	if err != nil {
		signed, signErr := s.store.SignedURL(ctx, key, imageURLTTL)
		if signErr != nil {
			return nil, fmt.Errorf("no URL for uploaded image: public: %v; signed: %w", err, signErr)
		}
		u = signed
	}

	log.WithField("path", key).Infof("scene image stored (%d bytes)", len(data))
	return &GeneratedImage{URL: u, StoragePath: key, Provider: ProviderImagen}, nil
}

// checkFallback HEAD-checks the Pollinations URL for prompt.
func (s *ImageService) checkFallback(ctx context.Context, prompt string) (string, bool) {
	u := FallbackImageURL(s.fallback, prompt)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return "", false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		log.Warnf("fallback image check failed: %v", err)
		return "", false
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("fallback image check returned status %d", resp.StatusCode)
		return "", false
	}
	return u, true
}

// FallbackImageURL builds the Pollinations URL for prompt under base.
func FallbackImageURL(base, prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if runes := []rune(prompt); len(runes) > maxFallbackPrompt {
		prompt = string(runes[:180]) + "... vertical video format"
	}
	return base + url.PathEscape(prompt) + "?width=1024&height=1280&nologo=true"
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

type imagenBackend struct {
	client *genai.Client
	model  string
}

func (b *imagenBackend) generate(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := b.client.Models.GenerateImages(ctx, b.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "9:16",
		OutputMIMEType: "image/png",
	})
	if err != nil {
		return nil, "", fmt.Errorf("imagen request failed: %w", err)
	}
	if len(resp.GeneratedImages) == 0 {
		return nil, "", errors.New("imagen returned no images")
	}

	gen := resp.GeneratedImages[0]
	if gen.Image == nil || len(gen.Image.ImageBytes) == 0 {
		if gen.RAIFilteredReason != "" {
			return nil, "", fmt.Errorf("image blocked by safety filters: %s", gen.RAIFilteredReason)
		}
		return nil, "", errors.New("imagen returned an empty image")
	}
	return gen.Image.ImageBytes, gen.Image.MIMEType, nil
}
