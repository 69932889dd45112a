package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

func TestKeyFromURL(t *testing.T) {
	s := New("https://proj.supabase.co", "key", "videos")

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"https://proj.supabase.co/storage/v1/object/public/videos/images/a.png", "images/a.png", true},
		{"https://proj.supabase.co/storage/v1/object/sign/videos/v/b.mp4?token=xyz", "v/b.mp4", true},
		{"https://proj.supabase.co/storage/v1/object/authenticated/videos/c%20d.png", "c d.png", true},
		{"https://proj.supabase.co/storage/v1/object/public/other/a.png", "", false},
		{"https://proj.supabase.co/storage/v1/object/upload/videos/a.png", "", false},
		{"https://cdn.example.com/a.png", "", false},
		{"https://proj.supabase.co/storage/v1/object/public/videos/", "", false},
	}

	for _, tt := range tests {
		got, ok := s.KeyFromURL(tt.ref)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("KeyFromURL(%q) = %q, %v; want %q, %v", tt.ref, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestUploadSetsHeaders(t *testing.T) {
	var gotPath, gotUpsert, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUpsert = r.Header.Get("x-upsert")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, "secret", "videos")
	if err := s.Upload(context.Background(), "videos/video_1.mp4", []byte("data"), "video/mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/storage/v1/object/videos/videos/video_1.mp4" {
		t.Errorf("path = %s", gotPath)
	}
	if gotUpsert != "true" {
		t.Errorf("x-upsert = %q", gotUpsert)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody != "data" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestUploadNonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	s := New(srv.URL, "secret", "videos")
	err := s.Upload(context.Background(), "a.mp4", []byte("x"), "video/mp4")
	if err == nil || !strings.Contains(err.Error(), "413") {
		t.Fatalf("expected 413 error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestDownloadRetriesOnUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	s := New(srv.URL, "secret", "videos")
	data, err := s.Download(context.Background(), "a.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "payload" || calls != 2 {
		t.Errorf("data=%q calls=%d", data, calls)
	}
}

func bucketServer(t *testing.T, public bool, bucketStatus int) (*httptest.Server, *int32) {
	t.Helper()
	var bucketCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/storage/v1/bucket/videos":
			atomic.AddInt32(&bucketCalls, 1)
			if bucketStatus != http.StatusOK {
				w.WriteHeader(bucketStatus)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "videos", "public": public})
		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/sign/videos/"):
			key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/sign/videos/")
			json.NewEncoder(w).Encode(map[string]string{
				"signedURL": "/object/sign/videos/" + key + "?token=abc",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &bucketCalls
}

func TestPublicURLPublicBucket(t *testing.T) {
	srv, calls := bucketServer(t, true, http.StatusOK)
	s := New(srv.URL, "secret", "videos")

	for i := 0; i < 3; i++ {
		url, err := s.PublicURL(context.Background(), "videos/v.mp4")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if url != srv.URL+"/storage/v1/object/public/videos/videos/v.mp4" {
			t.Errorf("url = %s", url)
		}
	}
	if *calls != 1 {
		t.Errorf("bucket lookup should be cached, got %d calls", *calls)
	}
}

func TestPublicURLPrivateBucket(t *testing.T) {
	srv, _ := bucketServer(t, false, http.StatusOK)
	s := New(srv.URL, "secret", "videos")

	if _, err := s.PublicURL(context.Background(), "v.mp4"); err == nil {
		t.Fatal("expected error for private bucket")
	}
}

func TestPublicURLBucketLookupFailureNotCached(t *testing.T) {
	srv, calls := bucketServer(t, true, http.StatusInternalServerError)
	s := New(srv.URL, "secret", "videos")

	s.PublicURL(context.Background(), "v.mp4")
	s.PublicURL(context.Background(), "v.mp4")
	if *calls != 2 {
		t.Errorf("failed lookups must not be cached, got %d calls", *calls)
	}
}

func TestSignedURL(t *testing.T) {
	srv, _ := bucketServer(t, false, http.StatusOK)
	s := New(srv.URL, "secret", "videos")

	url, err := s.SignedURL(context.Background(), "videos/v.mp4", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, srv.URL+"/storage/v1/object/sign/videos/videos/v.mp4?token=") {
		t.Errorf("url = %s", url)
	}
}

func TestDelete(t *testing.T) {
	var gotBody map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/storage/v1/object/videos" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	s := New(srv.URL, "secret", "videos")
	if err := s.Delete(context.Background(), "videos/v.mp4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotBody["prefixes"]) != 1 || gotBody["prefixes"][0] != "videos/v.mp4" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestGenerateStoragePath(t *testing.T) {
	s := New("https://x", "k", "videos")
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	if got := s.GenerateStoragePath(id, "voiceover.mp3"); got != "projects/11111111-2222-3333-4444-555555555555/voiceover.mp3" {
		t.Errorf("got %s", got)
	}
}
