package fonts

import (
	"strings"

	"github.com/gogpu/gg/text"
	"golang.org/x/text/unicode/norm"
)

// LineHeightFactor is the baseline-to-baseline distance as a multiple of the
// font size.
const LineHeightFactor = 1.2

// Glyph is one positioned glyph of a measured line. X is the pen position
// relative to the start of the line, letter spacing included.
type Glyph struct {
	Rune rune
	GID  text.GlyphID
	X    float64
}

// Line is a measured line of text.
type Line struct {
	Text   string
	Width  float64
	Glyphs []Glyph
}

// Block is a measured multi-line text block. Height is the number of lines
// times LineHeight; Width is the widest line.
type Block struct {
	Lines      []Line
	LineHeight float64
	Width      float64
	Height     float64
}

// SplitLines splits content on line breaks. "\r\n" counts as one break and
// each line is normalised to NFC so combining sequences measure and draw as a
// single glyph where the font has one. An empty string is one empty line.
func SplitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = norm.NFC.String(l)
	}
	return lines
}

// MeasureLine lays out a single line with face. Every glyph advances the pen
// by its advance plus letterSpacing, including the last one, so the width
// matches a browser canvas with the same letter spacing.
func MeasureLine(face text.Face, line string, letterSpacing float64) Line {
	out := Line{Text: line}
	if face == nil || line == "" {
		return out
	}
	x := 0.0
	for g := range face.Glyphs(line) {
		out.Glyphs = append(out.Glyphs, Glyph{Rune: g.Rune, GID: g.GID, X: x})
		x += g.Advance + letterSpacing
	}
	out.Width = max(x, 0)
	return out
}

// Measure lays out content as a block at fontSize.
func Measure(face text.Face, content string, fontSize, letterSpacing float64) Block {
	lines := SplitLines(content)
	b := Block{
		Lines:      make([]Line, len(lines)),
		LineHeight: fontSize * LineHeightFactor,
	}
	for i, l := range lines {
		b.Lines[i] = MeasureLine(face, l, letterSpacing)
		b.Width = max(b.Width, b.Lines[i].Width)
	}
	b.Height = float64(len(lines)) * b.LineHeight
	return b
}

// TextStyle carries the properties that affect text geometry.
type TextStyle struct {
	Family        string
	Weight        string
	Size          float64
	LetterSpacing float64
}

// MeasureText resolves the style's face in r and measures content.
func (r *Registry) MeasureText(content string, style TextStyle) Block {
	return Measure(r.Face(style.Family, style.Weight, style.Size), content, style.Size, style.LetterSpacing)
}
