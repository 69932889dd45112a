package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Overlay is a scene image resized and positioned on the canvas.
type Overlay struct {
	Image  image.Image
	X, Y   int
	Width  int
	Height int
}

// Composite decodes a scene image and fits it to 60% of the canvas height,
// keeping its aspect ratio. The result is centred horizontally and pinned a
// fixed distance from the top. Wide images may overflow the canvas sides.
func Composite(data []byte, canvas Canvas) (*Overlay, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrInvalidImage, format)
	}

	h := int(float64(canvas.Height) * overlayHeightRatio)
	w := int(float64(h) * float64(b.Dx()) / float64(b.Dy()))
	if w < 1 {
		w = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	return &Overlay{
		Image:  dst,
		X:      (canvas.Width - w) / 2,
		Y:      overlayTopOffset,
		Width:  w,
		Height: h,
	}, nil
}

// ResizeAndCrop scales img to cover a w x h frame and crops the centre.
func ResizeAndCrop(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	srcRatio := float64(b.Dx()) / float64(b.Dy())
	dstRatio := float64(w) / float64(h)

	var sw, sh int
	if srcRatio > dstRatio {
		// wider than the frame: match height, trim the sides
		sh = h
		sw = int(float64(h) * srcRatio)
	} else {
		sw = w
		sh = int(float64(w) / srcRatio)
	}
	if sw < w {
		sw = w
	}
	if sh < h {
		sh = h
	}

	scaled := image.NewRGBA(image.Rect(0, 0, sw, sh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Over, nil)

	left := (sw - w) / 2
	top := (sh - h) / 2
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), scaled, image.Pt(left, top), draw.Src)
	return out
}

// SolidFrame returns a canvas-sized image filled with c.
func SolidFrame(canvas Canvas, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}
