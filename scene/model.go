// Package scene holds the compositor's document model: the two base images,
// the ordered text and image layers, the selection, and the store of decoded
// layer images.
//
// Paint order is fixed by category, not by insertion: the original image,
// then every image layer, then every text layer, then the foreground cutout.
// Within a category, slice order is stacking order (last is topmost).
//
// A Scene is not safe for concurrent mutation. Callers serialise access; the
// behind.Editor facade does this with a mutex.
package scene

import (
	"image"
	"slices"

	"github.com/gogpu/behind/geom"
)

// Canvas limits used when fitting the original image.
const (
	DefaultMaxWidth  = 800
	DefaultMaxHeight = 600
)

// Scene is the compositing document.
type Scene struct {
	// Original is drawn first, scaled to the canvas.
	Original image.Image
	// Foreground is the subject cutout, drawn last, scaled to the canvas.
	Foreground image.Image

	// Width and Height are the logical canvas size in pixels.
	Width, Height int

	Texts  []*TextLayer
	Images []*ImageLayer

	Selection Selection

	// Store owns the decoded images of the image layers, keyed by layer ID.
	Store *Store
}

// New returns an empty scene whose canvas is the original image fitted
// inside DefaultMaxWidth x DefaultMaxHeight.
func New(original, foreground image.Image) *Scene {
	return NewWithLimits(original, foreground, DefaultMaxWidth, DefaultMaxHeight)
}

// NewWithLimits is New with explicit canvas limits. A limit <= 0 disables
// fitting on that axis.
func NewWithLimits(original, foreground image.Image, maxW, maxH int) *Scene {
	s := &Scene{
		Original:   original,
		Foreground: foreground,
		Store:      NewStore(),
	}
	if original != nil {
		b := original.Bounds()
		s.Width, s.Height = geom.FitWithin(b.Dx(), b.Dy(), maxW, maxH)
	}
	return s
}

// AddText appends a text layer with the default properties, centered
// horizontally near the top of the canvas, selects it and opens the text
// editor.
func (s *Scene) AddText() *TextLayer {
	t := &TextLayer{
		ID:          NewID(),
		Content:     DefaultText,
		X:           float64(s.Width) / 2,
		Y:           DefaultTextY,
		FontSize:    DefaultFontSize,
		FontFamily:  DefaultFontFamily,
		FontWeight:  DefaultFontWeight,
		Color:       DefaultTextColor,
		Opacity:     DefaultLayerOpacity,
		StrokeColor: DefaultStrokeColor,
	}
	s.Texts = append(s.Texts, t)
	s.SelectText(t.ID)
	s.Selection.TextEditorOpen = true
	return t
}

// Text returns the text layer with the given ID.
func (s *Scene) Text(id ID) (*TextLayer, bool) {
	i := s.textIndex(id)
	if i < 0 {
		return nil, false
	}
	return s.Texts[i], true
}

// UpdateText applies a partial update to a text layer.
func (s *Scene) UpdateText(id ID, p TextPatch) error {
	t, ok := s.Text(id)
	if !ok {
		return ErrNotFound
	}
	return p.apply(t)
}

// DeleteText removes a text layer, clears the text selection and closes the
// text editor in one step.
func (s *Scene) DeleteText(id ID) error {
	i := s.textIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.Texts = slices.Delete(s.Texts, i, i+1)
	s.Selection.TextID = ""
	s.Selection.TextEditorOpen = false
	return nil
}

// MoveText sets a text layer's anchor. Positions are not clamped to the
// canvas; layers may be moved fully off-canvas.
func (s *Scene) MoveText(id ID, x, y float64) bool {
	t, ok := s.Text(id)
	if !ok {
		return false
	}
	t.X, t.Y = x, y
	return true
}

// AddImage validates an uploaded file, appends an image layer with the
// default placement, starts decoding data in the background and selects the
// new layer. The layer takes part in hit-testing immediately but renders
// nothing until its image is decoded. On a validation error the scene is
// unchanged.
func (s *Scene) AddImage(data []byte) (*ImageLayer, error) {
	if _, err := ValidateUpload(data); err != nil {
		return nil, err
	}
	l := s.newImageLayer()
	s.Store.Decode(l.ID, data)
	s.appendImage(l)
	return l, nil
}

// AddImageResource appends an image layer whose image is provided by res,
// for hosts that decode images themselves. The layer is selected.
func (s *Scene) AddImageResource(res *Resource) *ImageLayer {
	l := s.newImageLayer()
	s.Store.Attach(l.ID, res)
	s.appendImage(l)
	return l
}

func (s *Scene) newImageLayer() *ImageLayer {
	return &ImageLayer{
		ID:       NewID(),
		Width:    DefaultImageSize,
		Height:   DefaultImageSize,
		Opacity:  DefaultLayerOpacity,
		Rotation: DefaultImageRotation,
	}
}

func (s *Scene) appendImage(l *ImageLayer) {
	s.Images = append(s.Images, l)
	s.SelectImage(l.ID)
}

// Image returns the image layer with the given ID.
func (s *Scene) Image(id ID) (*ImageLayer, bool) {
	i := s.imageIndex(id)
	if i < 0 {
		return nil, false
	}
	return s.Images[i], true
}

// UpdateImage applies a partial update to an image layer.
func (s *Scene) UpdateImage(id ID, p ImagePatch) error {
	l, ok := s.Image(id)
	if !ok {
		return ErrNotFound
	}
	return p.apply(l)
}

// DeleteImage removes an image layer, releases its decoded image, clears
// the image selection and closes the image editor in one step.
func (s *Scene) DeleteImage(id ID) error {
	i := s.imageIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	s.Images = slices.Delete(s.Images, i, i+1)
	s.Store.Release(id)
	s.Selection.ImageID = ""
	s.Selection.ImageEditorOpen = false
	return nil
}

// MoveImage sets an image layer's pre-rotation top-left corner. Positions
// are not clamped to the canvas.
func (s *Scene) MoveImage(id ID, x, y float64) bool {
	l, ok := s.Image(id)
	if !ok {
		return false
	}
	l.X, l.Y = x, y
	return true
}

// Snapshot returns a copy of s whose layer slices and layers can be read
// while s keeps changing. Base images and the store are shared.
func (s *Scene) Snapshot() *Scene {
	c := *s
	c.Texts = make([]*TextLayer, len(s.Texts))
	for i, t := range s.Texts {
		cp := *t
		c.Texts[i] = &cp
	}
	c.Images = make([]*ImageLayer, len(s.Images))
	for i, l := range s.Images {
		cp := *l
		c.Images[i] = &cp
	}
	return &c
}

func (s *Scene) textIndex(id ID) int {
	return slices.IndexFunc(s.Texts, func(t *TextLayer) bool { return t.ID == id })
}

func (s *Scene) imageIndex(id ID) int {
	return slices.IndexFunc(s.Images, func(l *ImageLayer) bool { return l.ID == id })
}
