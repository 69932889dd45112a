package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Built-in background clips, relative to the catalog directory.
var defaultBackgrounds = map[string]string{
	"minecraft": "minecraft.mp4",
	"subway":    "subway.mp4",
	"abstract":  "abstract.mp4",
}

var stillExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// BackgroundCatalog maps background style names to local media files.
type BackgroundCatalog struct {
	dir     string
	entries map[string]string
}

// catalogFile is the YAML layout accepted by LoadBackgroundCatalog:
//
//	dir: /srv/backgrounds
//	backgrounds:
//	  minecraft: minecraft.mp4
//	  space: space-loop.mp4
type catalogFile struct {
	Dir         string            `yaml:"dir"`
	Backgrounds map[string]string `yaml:"backgrounds"`
}

func NewBackgroundCatalog(dir string) *BackgroundCatalog {
	entries := make(map[string]string, len(defaultBackgrounds))
	for k, v := range defaultBackgrounds {
		entries[k] = v
	}
	return &BackgroundCatalog{dir: dir, entries: entries}
}

// LoadBackgroundCatalog starts from the built-in styles and applies the YAML
// file at path on top. An empty path yields the built-in catalog.
func LoadBackgroundCatalog(path, dir string) (*BackgroundCatalog, error) {
	c := NewBackgroundCatalog(dir)
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read background catalog: %w", err)
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse background catalog %s: %w", path, err)
	}

	if f.Dir != "" {
		c.dir = f.Dir
	}
	for style, file := range f.Backgrounds {
		style = strings.ToLower(strings.TrimSpace(style))
		if style == "" {
			continue
		}
		if file == "" {
			delete(c.entries, style)
			continue
		}
		c.entries[style] = file
	}
	return c, nil
}

// Styles lists the known style names, sorted.
func (c *BackgroundCatalog) Styles() []string {
	styles := lo.Keys(c.entries)
	sort.Strings(styles)
	return styles
}

// Lookup returns the file configured for style.
func (c *BackgroundCatalog) Lookup(style string) (string, bool) {
	file, ok := c.entries[strings.ToLower(strings.TrimSpace(style))]
	if !ok {
		return "", false
	}
	if filepath.IsAbs(file) || c.dir == "" {
		return file, true
	}
	return filepath.Join(c.dir, file), true
}

// Resolve turns a style into a timeline background. Unknown styles, missing
// files and unreadable media all degrade to a solid black frame.
func (c *BackgroundCatalog) Resolve(ctx context.Context, style string, prober Prober, scratch *Scratch, canvas Canvas) (Background, error) {
	logger := log.WithField("background", style)

	path, ok := c.Lookup(style)
	if !ok {
		logger.Warn("unknown background style, using black background")
		return solidBackground(style, scratch, canvas)
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warnf("background file unavailable (%v), using black background", err)
		return solidBackground(style, scratch, canvas)
	}

	if isStill(path) {
		bg, err := stillBackground(style, path, scratch, canvas)
		if err != nil {
			logger.Warnf("background image unusable (%v), using black background", err)
			return solidBackground(style, scratch, canvas)
		}
		return bg, nil
	}

	dur, err := prober.Duration(ctx, path)
	if err != nil || dur <= 0 {
		logger.Warnf("background probe failed (dur=%.2f, err=%v), using black background", dur, err)
		return solidBackground(style, scratch, canvas)
	}

	logger.Debugf("background clip %s, %.2fs per pass", path, dur)
	return Background{Style: style, Path: path, ClipDuration: dur}, nil
}

func isStill(path string) bool {
	return lo.Contains(stillExtensions, strings.ToLower(filepath.Ext(path)))
}

func stillBackground(style, path string, scratch *Scratch, canvas Canvas) (Background, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Background{}, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Background{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	out, err := writePNG(scratch, ResizeAndCrop(img, canvas.Width, canvas.Height))
	if err != nil {
		return Background{}, err
	}
	return Background{Style: style, Path: out, Still: true}, nil
}

func solidBackground(style string, scratch *Scratch, canvas Canvas) (Background, error) {
	out, err := writePNG(scratch, SolidFrame(canvas, color.Black))
	if err != nil {
		return Background{}, err
	}
	return Background{Style: style, Path: out, Still: true}, nil
}

func writePNG(scratch *Scratch, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode png: %w", err)
	}
	return scratch.Write(".png", buf.Bytes())
}
