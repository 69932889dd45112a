package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const fetchTimeout = 30 * time.Second

// ObjectReader is the storage side of asset fetching.
type ObjectReader interface {
	Download(ctx context.Context, key string) ([]byte, error)
	// KeyFromURL derives an object key from a storage URL of the configured
	// bucket. ok is false for foreign URLs.
	KeyFromURL(ref string) (key string, ok bool)
}

// Fetcher resolves asset references to bytes: a direct HTTP GET first, then
// a storage read by key. It never retries on its own.
//
// A reference is an http(s) URL or a storage key. Local paths and file://
// URLs are only read when the fetcher was built WithLocalFiles.
type Fetcher struct {
	client     *http.Client
	store      ObjectReader
	localFiles bool
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithLocalFiles lets the fetcher read file:// URLs and bare paths from disk.
func WithLocalFiles() FetchOption {
	return func(f *Fetcher) {
		f.localFiles = true
	}
}

func NewFetcher(store ObjectReader, opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		store:  store,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the bytes behind ref. hint is an explicit storage key used
// for the fallback; when empty the key is derived from ref if possible.
func (f *Fetcher) Fetch(ctx context.Context, ref, hint string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrAssetUnavailable)
	}

	data, directErr := f.direct(ctx, ref)
	if directErr == nil {
		return data, nil
	}

	key := hint
	if key == "" && f.store != nil {
		key = f.storageKey(ref)
	}
	if key == "" || f.store == nil {
		return nil, fmt.Errorf("%w: %s: direct: %v; storage: no storage key", ErrAssetUnavailable, ref, directErr)
	}

	log.WithField("key", key).Warnf("direct fetch failed (%v), falling back to storage", directErr)

	data, storeErr := f.store.Download(ctx, key)
	if storeErr != nil {
		return nil, fmt.Errorf("%w: %s: direct: %v; storage %s: %v", ErrAssetUnavailable, ref, directErr, key, storeErr)
	}
	return data, nil
}

// storageKey derives the object key for ref: the path of a storage URL, or
// ref itself when it carries no scheme.
func (f *Fetcher) storageKey(ref string) string {
	if key, ok := f.store.KeyFromURL(ref); ok {
		return key
	}
	if _, ok := refScheme(ref); ok {
		return ""
	}
	return strings.TrimPrefix(ref, "/")
}

func (f *Fetcher) direct(ctx context.Context, ref string) ([]byte, error) {
	scheme, ok := refScheme(ref)
	switch {
	case !ok || scheme == "file":
		if !f.localFiles {
			return nil, fmt.Errorf("not an http(s) URL")
		}
		return os.ReadFile(strings.TrimPrefix(ref, "file://"))
	case scheme != "http" && scheme != "https":
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}

// refScheme returns the lower-cased URL scheme of ref, if it has one.
func refScheme(ref string) (string, bool) {
	scheme, _, found := strings.Cut(ref, "://")
	if !found || scheme == "" {
		return "", false
	}
	return strings.ToLower(scheme), true
}

// IsRemoteRef reports whether ref is an http(s) URL.
func IsRemoteRef(ref string) bool {
	scheme, ok := refScheme(strings.TrimSpace(ref))
	return ok && (scheme == "http" || scheme == "https")
}
