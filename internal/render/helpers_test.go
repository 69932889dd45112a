package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func strPtr(s string) *string { return &s }

// fakeSource serves assets from memory and records every request.
type fakeSource struct {
	mu     sync.Mutex
	assets map[string][]byte
	calls  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{assets: map[string][]byte{}}
}

func (f *fakeSource) Fetch(_ context.Context, ref, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ref)
	data, ok := f.assets[ref]
	if !ok {
		return nil, errors.Join(ErrAssetUnavailable, errors.New("not found: "+ref))
	}
	return data, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeProber returns durations by file extension.
type fakeProber struct {
	byExt map[string]float64
}

func (p fakeProber) Duration(_ context.Context, path string) (float64, error) {
	d, ok := p.byExt[filepath.Ext(path)]
	if !ok {
		return 0, errors.New("probe failed")
	}
	return d, nil
}

// fakeEncoder writes a stub output file and keeps the timeline it was given.
type fakeEncoder struct {
	err error
	got *Timeline
	// subtitleErr is returned while the timeline still burns in subtitles.
	subtitleErr error
	calls       int
}

func (e *fakeEncoder) Encode(_ context.Context, tl *Timeline, out string) error {
	e.got = tl
	e.calls++
	if e.err != nil {
		return e.err
	}
	if e.subtitleErr != nil && tl.SubtitlePath != "" {
		return e.subtitleErr
	}
	return os.WriteFile(out, []byte("fake mp4"), 0644)
}

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	publicErr error
	signErr   error
	signedTTL int
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Download(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *fakeStore) KeyFromURL(ref string) (string, bool) {
	const marker = "/storage/v1/object/public/videos/"
	_, key, ok := strings.Cut(ref, marker)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (s *fakeStore) UploadFile(_ context.Context, key, localPath, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) PublicURL(_ context.Context, key string) (string, error) {
	if s.publicErr != nil {
		return "", s.publicErr
	}
	return "https://store.test/public/" + key, nil
}

func (s *fakeStore) SignedURL(_ context.Context, key string, expiresIn int) (string, error) {
	s.signedTTL = expiresIn
	if s.signErr != nil {
		return "", s.signErr
	}
	return "https://store.test/signed/" + key + "?token=abc", nil
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
