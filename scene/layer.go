package scene

import (
	"fmt"
	"math"

	"github.com/gogpu/behind/fonts"
	"github.com/gogpu/behind/geom"
	"github.com/google/uuid"
)

// ID identifies a layer. IDs are random UUID strings.
type ID string

// NewID returns a fresh layer ID.
func NewID() ID {
	return ID(uuid.NewString())
}

// Text layer defaults applied by AddText.
const (
	DefaultText          = "pov"
	DefaultTextY         = 60
	DefaultFontSize      = 48
	DefaultFontFamily    = "Arial, sans-serif"
	DefaultFontWeight    = "400"
	DefaultTextColor     = "#ffffff"
	DefaultStrokeColor   = "#000000"
	DefaultImageSize     = 200
	DefaultLayerOpacity  = 1
	DefaultImageRotation = 0
)

// TextLayer is a block of text anchored at (X, Y), where Y is the baseline
// of the first line.
type TextLayer struct {
	ID            ID
	Content       string
	X, Y          float64
	FontSize      float64 // px
	FontFamily    string  // CSS family list
	FontWeight    string  // "400", "bold", ...
	Color         string  // hex fill color
	Opacity       float64 // 0..1
	LetterSpacing float64 // px
	StrokeWidth   float64 // px, 0 disables the stroke
	StrokeColor   string  // hex stroke color
}

// Position returns the layer anchor.
func (t *TextLayer) Position() (float64, float64) { return t.X, t.Y }

// Style returns the geometry-relevant text properties.
func (t *TextLayer) Style() fonts.TextStyle {
	return fonts.TextStyle{
		Family:        t.FontFamily,
		Weight:        t.FontWeight,
		Size:          t.FontSize,
		LetterSpacing: t.LetterSpacing,
	}
}

// Bounds returns the hit box of the measured block b: from the anchor to the
// widest line horizontally, and from one font size above the first baseline
// down by the block height.
func (t *TextLayer) Bounds(b fonts.Block) geom.Rect {
	return geom.Rect{X: t.X, Y: t.Y - t.FontSize, W: b.Width, H: b.Height}
}

// ImageLayer is an auxiliary image placed at (X, Y) before rotation and
// rotated about its center.
type ImageLayer struct {
	ID            ID
	X, Y          float64
	Width, Height float64
	Opacity       float64
	Rotation      float64 // degrees, clockwise
}

// Position returns the pre-rotation top-left corner.
func (l *ImageLayer) Position() (float64, float64) { return l.X, l.Y }

// Frame returns the layer's placement as a rotated rectangle.
func (l *ImageLayer) Frame() geom.RotatedRect {
	return geom.RotatedRect{
		Rect:     geom.Rect{X: l.X, Y: l.Y, W: l.Width, H: l.Height},
		Rotation: l.Rotation,
	}
}

// Ptr returns a pointer to v. It keeps patch literals short:
//
//	s.UpdateText(id, scene.TextPatch{FontSize: scene.Ptr(72.0)})
func Ptr[T any](v T) *T { return &v }

// TextPatch is a partial update of a TextLayer. Nil fields are left as they
// are.
type TextPatch struct {
	Content       *string
	X, Y          *float64
	FontSize      *float64
	FontFamily    *string
	FontWeight    *string
	Color         *string
	Opacity       *float64
	LetterSpacing *float64
	StrokeWidth   *float64
	StrokeColor   *string
}

// apply validates p and writes it into t. Nothing is written when validation
// fails.
func (p TextPatch) apply(t *TextLayer) error {
	if p.FontSize != nil && !(*p.FontSize > 0) {
		return fmt.Errorf("%w: font size %v", ErrInvalidValue, *p.FontSize)
	}
	if p.StrokeWidth != nil && !(*p.StrokeWidth >= 0) {
		return fmt.Errorf("%w: stroke width %v", ErrInvalidValue, *p.StrokeWidth)
	}
	if p.FontWeight != nil {
		if _, err := fonts.ParseWeight(*p.FontWeight); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
	}
	for _, c := range []*string{p.Color, p.StrokeColor} {
		if c != nil && !ValidColor(*c) {
			return fmt.Errorf("%w: %q", ErrInvalidColor, *c)
		}
	}
	for _, f := range []*float64{p.X, p.Y, p.Opacity, p.LetterSpacing} {
		if f != nil && !finite(*f) {
			return fmt.Errorf("%w: %v", ErrInvalidValue, *f)
		}
	}

	setIf(&t.Content, p.Content)
	setIf(&t.X, p.X)
	setIf(&t.Y, p.Y)
	setIf(&t.FontSize, p.FontSize)
	setIf(&t.FontFamily, p.FontFamily)
	setIf(&t.FontWeight, p.FontWeight)
	setIf(&t.Color, p.Color)
	setIf(&t.LetterSpacing, p.LetterSpacing)
	setIf(&t.StrokeWidth, p.StrokeWidth)
	setIf(&t.StrokeColor, p.StrokeColor)
	if p.Opacity != nil {
		t.Opacity = clamp01(*p.Opacity)
	}
	return nil
}

// ImagePatch is a partial update of an ImageLayer. Nil fields are left as
// they are.
type ImagePatch struct {
	X, Y          *float64
	Width, Height *float64
	Opacity       *float64
	Rotation      *float64
}

func (p ImagePatch) apply(l *ImageLayer) error {
	for _, f := range []*float64{p.Width, p.Height} {
		if f != nil && !(*f > 0 && finite(*f)) {
			return fmt.Errorf("%w: size %v", ErrInvalidValue, *f)
		}
	}
	for _, f := range []*float64{p.X, p.Y, p.Opacity, p.Rotation} {
		if f != nil && !finite(*f) {
			return fmt.Errorf("%w: %v", ErrInvalidValue, *f)
		}
	}

	setIf(&l.X, p.X)
	setIf(&l.Y, p.Y)
	setIf(&l.Width, p.Width)
	setIf(&l.Height, p.Height)
	setIf(&l.Rotation, p.Rotation)
	if p.Opacity != nil {
		l.Opacity = clamp01(*p.Opacity)
	}
	return nil
}

// ValidColor reports whether s is a CSS hex color: #rgb, #rgba, #rrggbb or
// #rrggbbaa.
func ValidColor(s string) bool {
	if len(s) < 2 || s[0] != '#' {
		return false
	}
	switch len(s) - 1 {
	case 3, 4, 6, 8:
	default:
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
