package render

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFetchDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	store := newFakeStore()
	f := NewFetcher(store)

	data, err := f.Fetch(context.Background(), srv.URL+"/a.png", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("got %q", data)
	}
}

func TestFetchFallsBackToHint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.objects["scenes/1.png"] = []byte("from-storage")
	f := NewFetcher(store)

	data, err := f.Fetch(context.Background(), srv.URL+"/a.png", "scenes/1.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "from-storage" {
		t.Errorf("got %q", data)
	}
}

func TestFetchDerivesKeyFromStorageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := newFakeStore()
	store.objects["images/scene.png"] = []byte("derived")
	f := NewFetcher(store)

	data, err := f.Fetch(context.Background(), srv.URL+"/storage/v1/object/public/videos/images/scene.png", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "derived" {
		t.Errorf("got %q", data)
	}
}

func TestFetchBothPathsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(newFakeStore())

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.png", "scenes/missing.png")
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("expected ErrAssetUnavailable, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "status 404") || !strings.Contains(msg, "object not found") {
		t.Errorf("error should carry both reasons: %s", msg)
	}
}

func TestFetchNoStorageKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(newFakeStore())

	_, err := f.Fetch(context.Background(), srv.URL+"/x.png", "")
	if !errors.Is(err, ErrAssetUnavailable) {
		t.Fatalf("expected ErrAssetUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "no storage key") {
		t.Errorf("expected 'no storage key' in %q", err.Error())
	}
}

func TestFetchLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.png")
	if err := os.WriteFile(path, []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(nil, WithLocalFiles())
	for _, ref := range []string{path, "file://" + path} {
		data, err := f.Fetch(context.Background(), ref, "")
		if err != nil {
			t.Fatalf("fetch %s: %v", ref, err)
		}
		if string(data) != "local" {
			t.Errorf("fetch %s: got %q", ref, data)
		}
	}
}

func TestFetchIgnoresLocalFilesByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte("server-secret"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(newFakeStore())
	for _, ref := range []string{path, "file://" + path} {
		data, err := f.Fetch(context.Background(), ref, "")
		if !errors.Is(err, ErrAssetUnavailable) {
			t.Errorf("fetch %s: expected ErrAssetUnavailable, got data=%q err=%v", ref, data, err)
		}
	}
}

func TestFetchBareStorageKey(t *testing.T) {
	store := newFakeStore()
	store.objects["images/scene.png"] = []byte("keyed")

	for _, f := range []*Fetcher{NewFetcher(store), NewFetcher(store, WithLocalFiles())} {
		data, err := f.Fetch(context.Background(), "images/scene.png", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "keyed" {
			t.Errorf("got %q", data)
		}
	}
}

func TestIsRemoteRef(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"https://cdn.example.com/a.mp3", true},
		{"HTTP://cdn.example.com/a.mp3", true},
		{"file:///etc/passwd", false},
		{"/etc/passwd", false},
		{"audio/voice.mp3", false},
		{"ftp://host/a.mp3", false},
	}
	for _, tt := range tests {
		if got := IsRemoteRef(tt.ref); got != tt.want {
			t.Errorf("IsRemoteRef(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}
