// Package hittest resolves a surface point to the topmost layer under it.
//
// Text layers are tested before image layers because they paint above them.
// Within a kind, layers are tested from topmost (last in the scene slice) to
// bottommost and the first containing layer wins. The foreground cutout is
// not considered: text hidden behind the subject can still be picked.
package hittest

import (
	"github.com/gogpu/gg"

	"github.com/gogpu/behind/fonts"
	"github.com/gogpu/behind/geom"
	"github.com/gogpu/behind/scene"
)

// Kind is the category of a picked layer.
type Kind int

const (
	None Kind = iota
	Text
	Image
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Image:
		return "image"
	default:
		return "none"
	}
}

// Hit is the result of Pick.
type Hit struct {
	Kind Kind
	ID   scene.ID
}

// Measurer lays out text. *fonts.Registry implements it; the renderer uses
// the same registry so picked boxes always match what is drawn.
type Measurer interface {
	MeasureText(content string, style fonts.TextStyle) fonts.Block
}

// TextBounds returns the hit box of t: from the anchor across the widest
// line, and from one font size above the first baseline down by the block
// height.
func TextBounds(m Measurer, t *scene.TextLayer) geom.Rect {
	return t.Bounds(m.MeasureText(t.Content, t.Style()))
}

// TextAt returns the topmost text layer whose box contains p.
func TextAt(m Measurer, sc *scene.Scene, p gg.Point) (*scene.TextLayer, bool) {
	for i := len(sc.Texts) - 1; i >= 0; i-- {
		t := sc.Texts[i]
		if TextBounds(m, t).Contains(p) {
			return t, true
		}
	}
	return nil, false
}

// ImageAt returns the topmost image layer whose rotated frame contains p.
// Layers whose image is still decoding are included.
func ImageAt(sc *scene.Scene, p gg.Point) (*scene.ImageLayer, bool) {
	for i := len(sc.Images) - 1; i >= 0; i-- {
		l := sc.Images[i]
		if l.Frame().Contains(p) {
			return l, true
		}
	}
	return nil, false
}

// Pick returns the layer under p, text first.
func Pick(m Measurer, sc *scene.Scene, p gg.Point) Hit {
	if t, ok := TextAt(m, sc, p); ok {
		return Hit{Kind: Text, ID: t.ID}
	}
	if l, ok := ImageAt(sc, p); ok {
		return Hit{Kind: Image, ID: l.ID}
	}
	return Hit{}
}
