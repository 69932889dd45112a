package render

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/google/uuid"
)

// SignedURLTTL is how long a fallback signed video URL stays valid: one year.
const SignedURLTTL = 31536000

// ObjectWriter is the storage side of publishing.
type ObjectWriter interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) error
	PublicURL(ctx context.Context, key string) (string, error)
	SignedURL(ctx context.Context, key string, expiresIn int) (string, error)
}

// Publisher uploads finished videos and resolves a URL a client can play.
type Publisher struct {
	store  ObjectWriter
	prefix string
}

func NewPublisher(store ObjectWriter) *Publisher {
	return &Publisher{store: store, prefix: "videos"}
}

// Publish uploads the file at localPath under a fresh name. The public URL is
// preferred; a private bucket gets a one-year signed URL instead.
func (p *Publisher) Publish(ctx context.Context, localPath string) (*RenderResult, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	key := path.Join(p.prefix, "video_"+uuid.NewString()+".mp4")
	logger := log.WithField("key", key)
	logger.Infof("uploading %d bytes", info.Size())

	if err := p.store.UploadFile(ctx, key, localPath, "video/mp4"); err != nil {
		return nil, fmt.Errorf("%w: upload: %w", ErrPublish, err)
	}

	result := &RenderResult{StoragePath: key, ByteSize: info.Size()}

	url, pubErr := p.store.PublicURL(ctx, key)
	if pubErr == nil && url != "" {
		result.VideoURL = url
		return result, nil
	}
	logger.Warnf("public URL unavailable (%v), falling back to signed URL", pubErr)

	url, signErr := p.store.SignedURL(ctx, key, SignedURLTTL)
	if signErr != nil || url == "" {
		return nil, fmt.Errorf("%w: no URL for %s: public: %v; signed: %v", ErrPublish, key, pubErr, signErr)
	}
	result.VideoURL = url
	return result, nil
}
