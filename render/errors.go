package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/behind/scene"
)

var (
	// ErrMissingBaseImage is returned when the scene lacks the original
	// image or the foreground cutout. It is fatal for a render.
	ErrMissingBaseImage = errors.New("render: original image and foreground cutout are required")

	// ErrReleasedSurface is returned when rendering onto a released surface.
	ErrReleasedSurface = errors.New("render: surface has been released")

	// ErrNoFont is returned for a text layer when no font resolves.
	ErrNoFont = errors.New("render: no font available")
)

// LayerKind names the category of a layer in a LayerError.
type LayerKind string

// Layer kinds.
const (
	KindImage LayerKind = "image"
	KindText  LayerKind = "text"
)

// LayerError reports a single layer that could not be drawn. Such failures
// are not fatal: the layer is skipped and rendering continues.
type LayerError struct {
	Kind LayerKind
	ID   scene.ID
	Err  error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("render: %s layer %s: %v", e.Kind, e.ID, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }
