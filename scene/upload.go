package scene

import (
	"fmt"

	"github.com/h2non/filetype"
)

// MaxUploadBytes is the largest accepted image upload.
const MaxUploadBytes = 10 << 20

// ValidateUpload checks that data is a non-empty image no larger than
// MaxUploadBytes, sniffing the type from its magic bytes. It returns the
// detected MIME type.
func ValidateUpload(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if len(data) > MaxUploadBytes {
		return "", fmt.Errorf("%w (%d bytes)", ErrTooLarge, len(data))
	}
	if !filetype.IsImage(data) {
		return "", ErrNotImage
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotImage, err)
	}
	return kind.MIME.Value, nil
}
