package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Scratch owns every intermediate file of a single pipeline run. Files are
// named with a fresh uuid so concurrent runs sharing a directory never
// collide, and Cleanup removes each registered file exactly once.
type Scratch struct {
	dir string

	mu      sync.Mutex
	paths   []string
	cleaned bool
}

// NewScratch prepares a scratch area rooted at dir.
func NewScratch(dir string) (*Scratch, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Path registers and returns a unique file path with the given suffix
// (e.g. ".png"). The file itself is not created.
func (s *Scratch) Path(suffix string) string {
	p := filepath.Join(s.dir, "render_"+uuid.NewString()+suffix)

	s.mu.Lock()
	s.paths = append(s.paths, p)
	s.mu.Unlock()

	return p
}

// Write stores data in a new registered file and returns its path.
func (s *Scratch) Write(suffix string, data []byte) (string, error) {
	p := s.Path(suffix)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write scratch file: %w", err)
	}
	return p, nil
}

// Files returns the paths registered so far.
func (s *Scratch) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Cleanup deletes every registered file. Individual failures are logged and
// never returned; calling it again is a no-op.
func (s *Scratch) Cleanup() {
	s.mu.Lock()
	if s.cleaned {
		s.mu.Unlock()
		return
	}
	s.cleaned = true
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	removed := 0
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
			// registered but never written
		default:
			log.WithField("path", p).Warnf("failed to delete scratch file: %v", err)
		}
	}
	log.Debugf("scratch cleanup removed %d/%d files", removed, len(paths))
}
