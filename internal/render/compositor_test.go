package render

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestCompositePortraitImage(t *testing.T) {
	ov, err := Composite(pngBytes(t, 100, 200), DefaultCanvas)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ov.Height != 1152 {
		t.Errorf("height = %d, want 1152", ov.Height)
	}
	if ov.Width != 576 {
		t.Errorf("width = %d, want 576", ov.Width)
	}
	if ov.X != 252 {
		t.Errorf("x = %d, want 252", ov.X)
	}
	if ov.Y != 50 {
		t.Errorf("y = %d, want 50", ov.Y)
	}
	if b := ov.Image.Bounds(); b.Dx() != ov.Width || b.Dy() != ov.Height {
		t.Errorf("image bounds %v do not match overlay %dx%d", b, ov.Width, ov.Height)
	}
}

func TestCompositeWideImageOverflows(t *testing.T) {
	ov, err := Composite(pngBytes(t, 200, 100), DefaultCanvas)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ov.Width != 2304 {
		t.Errorf("width = %d, want 2304", ov.Width)
	}
	if ov.X != (1080-2304)/2 {
		t.Errorf("x = %d, want %d", ov.X, (1080-2304)/2)
	}
}

func TestCompositeRejectsGarbage(t *testing.T) {
	_, err := Composite([]byte("definitely not an image"), DefaultCanvas)
	if !errors.Is(err, ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestResizeAndCrop(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"wide source", 400, 100},
		{"tall source", 100, 400},
		{"square source", 300, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			out := ResizeAndCrop(src, 108, 192)
			if b := out.Bounds(); b.Dx() != 108 || b.Dy() != 192 {
				t.Errorf("bounds = %v, want 108x192", b)
			}
		})
	}
}

func TestSolidFrame(t *testing.T) {
	img := SolidFrame(Canvas{Width: 4, Height: 8}, color.Black)
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 8 {
		t.Fatalf("bounds = %v", b)
	}
	r, g, b, a := img.At(2, 5).RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0xffff {
		t.Errorf("pixel = %v,%v,%v,%v, want opaque black", r, g, b, a)
	}
}
