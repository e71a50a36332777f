// Package render draws a scene onto a raster surface in the fixed paint
// order that produces the text-behind-subject effect: original image, image
// layers, text layers, foreground cutout.
//
// One Renderer serves both the interactive preview and the high-resolution
// export; Mode only switches resampling quality and selection overlays.
//
// Usage:
//
//	r := render.New(nil) // default fonts
//	s := render.NewSurface(sc.Width, sc.Height, 1)
//	stats, err := r.Render(s, sc, render.Interactive)
//	img := s.Image()
package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Surface is a CPU raster target. Layer coordinates are given in logical
// pixels; the backing image is the logical size times Scale.
type Surface struct {
	img           *image.RGBA
	width, height int
	scale         float64
}

// NewSurface allocates a surface of width x height logical pixels at the
// given linear scale. A scale <= 0 is treated as 1.
func NewSurface(width, height int, scale float64) *Surface {
	if scale <= 0 {
		scale = 1
	}
	pw := int(math.Ceil(float64(width) * scale))
	ph := int(math.Ceil(float64(height) * scale))
	return &Surface{
		img:    image.NewRGBA(image.Rect(0, 0, max(pw, 0), max(ph, 0))),
		width:  width,
		height: height,
		scale:  scale,
	}
}

// Image returns the backing image. It is nil after Release.
func (s *Surface) Image() *image.RGBA { return s.img }

// Scale returns the linear scale from logical to device pixels.
func (s *Surface) Scale() float64 { return s.scale }

// LogicalSize returns the size in logical pixels.
func (s *Surface) LogicalSize() (int, int) { return s.width, s.height }

// Bounds returns the device pixel bounds.
func (s *Surface) Bounds() image.Rectangle {
	if s.img == nil {
		return image.Rectangle{}
	}
	return s.img.Bounds()
}

// Clear fills the surface with c.
func (s *Surface) Clear(c color.Color) {
	if s.img == nil {
		return
	}
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// Release drops the backing image so its memory can be reclaimed.
func (s *Surface) Release() {
	s.img = nil
}

// Released reports whether Release was called.
func (s *Surface) Released() bool { return s.img == nil }
