// Package project reads scene documents from YAML or TOML files and builds
// editors from them.
//
// A document names the photo, either a foreground cutout file or a
// segmentation to derive one, extra fonts, and the text and image layers to
// place. Relative paths are resolved against the document's directory.
//
//	original: photo.jpg
//	foreground: cutout.png
//	texts:
//	  - content: POV
//	    font_size: 120
//	    font_weight: bold
//	    stroke_width: 2
//	images:
//	  - file: sticker.png
//	    x: 40
//	    y: 300
//	    rotation: -12
package project

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/behind"
	"github.com/gogpu/behind/fonts"
	"github.com/gogpu/behind/internal/logx"
	"github.com/gogpu/behind/scene"
	"github.com/gogpu/behind/segment"
)

var (
	// ErrUnknownFormat is returned for files that are neither YAML nor TOML.
	ErrUnknownFormat = errors.New("project: unknown document format")

	// ErrNoOriginal is returned when a document names no original image.
	ErrNoOriginal = errors.New("project: original image is required")

	// ErrNoForeground is returned when a document names neither a
	// foreground file nor a segmentation.
	ErrNoForeground = errors.New("project: foreground or segment is required")
)

// Document is a scene description.
type Document struct {
	Original   string       `yaml:"original" toml:"original"`
	Foreground string       `yaml:"foreground,omitempty" toml:"foreground,omitempty"`
	Segment    *Segment     `yaml:"segment,omitempty" toml:"segment,omitempty"`
	Canvas     *Canvas      `yaml:"canvas,omitempty" toml:"canvas,omitempty"`
	Output     string       `yaml:"output,omitempty" toml:"output,omitempty"`
	Fonts      []Font       `yaml:"fonts,omitempty" toml:"fonts,omitempty"`
	Texts      []Text       `yaml:"texts,omitempty" toml:"texts,omitempty"`
	Images     []ImageLayer `yaml:"images,omitempty" toml:"images,omitempty"`

	// Dir is the directory relative paths are resolved against. Load sets
	// it to the document's directory.
	Dir string `yaml:"-" toml:"-"`
}

// Segment derives the foreground cutout by luminance thresholding.
type Segment struct {
	Threshold uint8   `yaml:"threshold" toml:"threshold"`
	Invert    bool    `yaml:"invert,omitempty" toml:"invert,omitempty"`
	Feather   float64 `yaml:"feather,omitempty" toml:"feather,omitempty"`
}

// Canvas overrides the box the original image is fitted into.
type Canvas struct {
	MaxWidth  int `yaml:"max_width" toml:"max_width"`
	MaxHeight int `yaml:"max_height" toml:"max_height"`
}

// Font registers a font file under a family and numeric weight.
type Font struct {
	Family string `yaml:"family" toml:"family"`
	Weight int    `yaml:"weight,omitempty" toml:"weight,omitempty"`
	File   string `yaml:"file" toml:"file"`
}

// Text is a text layer. Unset fields keep the text layer defaults.
type Text struct {
	Content       *string  `yaml:"content,omitempty" toml:"content,omitempty"`
	X             *float64 `yaml:"x,omitempty" toml:"x,omitempty"`
	Y             *float64 `yaml:"y,omitempty" toml:"y,omitempty"`
	FontSize      *float64 `yaml:"font_size,omitempty" toml:"font_size,omitempty"`
	FontFamily    *string  `yaml:"font_family,omitempty" toml:"font_family,omitempty"`
	FontWeight    *string  `yaml:"font_weight,omitempty" toml:"font_weight,omitempty"`
	Color         *string  `yaml:"color,omitempty" toml:"color,omitempty"`
	Opacity       *float64 `yaml:"opacity,omitempty" toml:"opacity,omitempty"`
	LetterSpacing *float64 `yaml:"letter_spacing,omitempty" toml:"letter_spacing,omitempty"`
	StrokeWidth   *float64 `yaml:"stroke_width,omitempty" toml:"stroke_width,omitempty"`
	StrokeColor   *string  `yaml:"stroke_color,omitempty" toml:"stroke_color,omitempty"`
}

// Patch returns the update that turns a default text layer into t.
func (t Text) Patch() scene.TextPatch {
	return scene.TextPatch{
		Content:       t.Content,
		X:             t.X,
		Y:             t.Y,
		FontSize:      t.FontSize,
		FontFamily:    t.FontFamily,
		FontWeight:    t.FontWeight,
		Color:         t.Color,
		Opacity:       t.Opacity,
		LetterSpacing: t.LetterSpacing,
		StrokeWidth:   t.StrokeWidth,
		StrokeColor:   t.StrokeColor,
	}
}

// ImageLayer is an image layer loaded from File.
type ImageLayer struct {
	File     string   `yaml:"file" toml:"file"`
	X        *float64 `yaml:"x,omitempty" toml:"x,omitempty"`
	Y        *float64 `yaml:"y,omitempty" toml:"y,omitempty"`
	Width    *float64 `yaml:"width,omitempty" toml:"width,omitempty"`
	Height   *float64 `yaml:"height,omitempty" toml:"height,omitempty"`
	Opacity  *float64 `yaml:"opacity,omitempty" toml:"opacity,omitempty"`
	Rotation *float64 `yaml:"rotation,omitempty" toml:"rotation,omitempty"`
}

// Patch returns the update that turns a default image layer into l.
func (l ImageLayer) Patch() scene.ImagePatch {
	return scene.ImagePatch{
		X:        l.X,
		Y:        l.Y,
		Width:    l.Width,
		Height:   l.Height,
		Opacity:  l.Opacity,
		Rotation: l.Rotation,
	}
}

// Format is a document encoding.
type Format int

const (
	YAML Format = iota + 1
	TOML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case YAML:
		return "yaml"
	case TOML:
		return "toml"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Decoder is implemented by the YAML and TOML stream decoders.
type Decoder interface {
	Decode(v any) error
}

// DecoderFunc creates a Decoder reading from r.
type DecoderFunc func(r io.Reader) Decoder

func (f Format) decoder() (DecoderFunc, error) {
	switch f {
	case YAML:
		return func(r io.Reader) Decoder {
			d := yaml.NewDecoder(r)
			d.KnownFields(true)
			return d
		}, nil
	case TOML:
		return func(r io.Reader) Decoder {
			return toml.NewDecoder(r).DisallowUnknownFields()
		}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// Decode reads a document in the given format.
func Decode(r io.Reader, f Format) (*Document, error) {
	newDec, err := f.decoder()
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := newDec(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("project: decode %v: %w", f, err)
	}
	return &doc, nil
}

// Load reads the document at path, choosing the format by extension.
func Load(path string) (*Document, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	fp, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	defer fp.Close()

	doc, err := Decode(bufio.NewReader(fp), f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	doc.Dir = filepath.Dir(path)
	logx.Get().Debug("project: loaded", "path", path, "format", f,
		"texts", len(doc.Texts), "images", len(doc.Images))
	return doc, nil
}

// Encode writes d in the given format.
func (d *Document) Encode(w io.Writer, f Format) error {
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case TOML:
		return toml.NewEncoder(w).Encode(d)
	}
	return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// Resolve returns path relative to the document directory, or path itself
// when it is absolute.
func (d *Document) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || d.Dir == "" {
		return path
	}
	return filepath.Join(d.Dir, path)
}

// OutputDir returns the resolved output directory, "." when unset.
func (d *Document) OutputDir() string {
	if d.Output == "" {
		return d.Resolve(".")
	}
	return d.Resolve(d.Output)
}

// Build creates an editor holding the document's scene. Layers are added in
// document order; image layers decode in the background. Options are
// applied after the ones derived from the document.
func (d *Document) Build(ctx context.Context, opts ...behind.Option) (*behind.Editor, error) {
	if d.Original == "" {
		return nil, ErrNoOriginal
	}
	if d.Foreground == "" && d.Segment == nil {
		return nil, ErrNoForeground
	}

	var base []behind.Option
	if len(d.Fonts) > 0 {
		reg, err := d.registry()
		if err != nil {
			return nil, err
		}
		base = append(base, behind.WithFonts(reg))
	}
	if d.Canvas != nil {
		base = append(base, behind.WithMaxCanvas(d.Canvas.MaxWidth, d.Canvas.MaxHeight))
	}
	opts = append(base, opts...)

	original, err := d.decodeImage(d.Original)
	if err != nil {
		return nil, err
	}
	var ed *behind.Editor
	if d.Foreground != "" {
		fg, err := d.decodeImage(d.Foreground)
		if err != nil {
			return nil, err
		}
		ed, err = behind.New(original, fg, opts...)
		if err != nil {
			return nil, err
		}
	} else {
		seg := segment.Threshold{Level: d.Segment.Threshold, Invert: d.Segment.Invert, Feather: d.Segment.Feather}
		if ed, err = behind.NewFromPhoto(ctx, original, seg, opts...); err != nil {
			return nil, err
		}
	}

	for i, t := range d.Texts {
		id := ed.AddText()
		if err := ed.UpdateText(id, t.Patch()); err != nil {
			return nil, fmt.Errorf("project: text %d: %w", i, err)
		}
	}
	for i, l := range d.Images {
		data, err := os.ReadFile(d.Resolve(l.File))
		if err != nil {
			return nil, fmt.Errorf("project: image %d: %w", i, err)
		}
		id, err := ed.AddBackgroundImage(data)
		if err != nil {
			return nil, fmt.Errorf("project: image %d (%s): %w", i, l.File, err)
		}
		if err := ed.UpdateBackgroundImage(id, l.Patch()); err != nil {
			return nil, fmt.Errorf("project: image %d: %w", i, err)
		}
	}
	ed.ClearSelection()
	return ed, nil
}

func (d *Document) registry() (*fonts.Registry, error) {
	def, err := fonts.Default()
	if err != nil {
		return nil, err
	}
	reg := def.Clone()
	for _, f := range d.Fonts {
		w := f.Weight
		if w == 0 {
			w = fonts.WeightNormal
		}
		if err := reg.RegisterFile(f.Family, w, d.Resolve(f.File)); err != nil {
			return nil, fmt.Errorf("project: %w", err)
		}
	}
	return reg, nil
}

func (d *Document) decodeImage(path string) (image.Image, error) {
	data, err := os.ReadFile(d.Resolve(path))
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("project: decode %s: %w", path, err)
	}
	return img, nil
}
