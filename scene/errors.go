package scene

import "errors"

var (
	// ErrNotFound is returned when a layer ID is not in the scene.
	ErrNotFound = errors.New("scene: layer not found")

	// ErrInvalidColor is returned for colors that are not CSS hex colors.
	ErrInvalidColor = errors.New("scene: invalid color")

	// ErrInvalidValue is returned for out-of-range numeric or token fields.
	ErrInvalidValue = errors.New("scene: invalid value")

	// ErrEmptyUpload is returned for a zero-length background upload.
	ErrEmptyUpload = errors.New("scene: empty upload")

	// ErrNotImage is returned when an upload is not a recognised image type.
	ErrNotImage = errors.New("scene: please select an image file")

	// ErrTooLarge is returned when an upload exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("scene: image file size must be less than 10MB")
)
