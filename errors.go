package behind

import "errors"

var (
	// ErrNoOriginal is returned when an editor is created without an
	// original image.
	ErrNoOriginal = errors.New("behind: original image is required")

	// ErrNoForeground is returned when an editor is created without a
	// foreground cutout.
	ErrNoForeground = errors.New("behind: foreground cutout is required")

	// ErrNoSegmenter is returned by NewFromPhoto when no segmenter is given.
	ErrNoSegmenter = errors.New("behind: segmenter is required")
)
