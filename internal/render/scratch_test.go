package render

import (
	"os"
	"testing"
)

func TestScratchPathsAreUnique(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create scratch: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		p := s.Path(".png")
		if seen[p] {
			t.Fatalf("duplicate scratch path %s", p)
		}
		seen[p] = true
	}
	if len(s.Files()) != 50 {
		t.Errorf("expected 50 registered files, got %d", len(s.Files()))
	}
}

func TestScratchCleanup(t *testing.T) {
	dir := t.TempDir()
	s, err := NewScratch(dir)
	if err != nil {
		t.Fatalf("failed to create scratch: %v", err)
	}

	a, err := s.Write(".png", []byte("a"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := s.Write(".mp3", []byte("b")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	s.Path(".mp4") // registered, never written

	s.Cleanup()

	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat err = %v", a, err)
	}
	if left := dirEntries(t, dir); len(left) != 0 {
		t.Errorf("expected empty scratch dir, found %v", left)
	}

	// second call is a no-op
	s.Cleanup()
	if len(s.Files()) != 0 {
		t.Errorf("expected no registered files after cleanup, got %v", s.Files())
	}
}

func TestScratchConcurrentRunsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	a, _ := NewScratch(dir)
	b, _ := NewScratch(dir)

	pa, err := a.Write(".png", []byte("a"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	pb, err := b.Write(".png", []byte("b"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	a.Cleanup()

	if _, err := os.Stat(pa); !os.IsNotExist(err) {
		t.Errorf("expected %s removed", pa)
	}
	if _, err := os.Stat(pb); err != nil {
		t.Errorf("other run's file should survive: %v", err)
	}
	b.Cleanup()
}
