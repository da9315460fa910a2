package photo

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// DefaultMaxSize bounds the longest edge of a thumbnail, in pixels.
const DefaultMaxSize = 240

// ImageTypeJPEG is the gofpdf image type of every thumbnail.
const ImageTypeJPEG = "JPG"

// Thumbnail decodes a JPEG, PNG or GIF photo, applies its EXIF orientation,
// shrinks it to fit maxSize and re-encodes it as JPEG. Images already smaller
// than maxSize are re-encoded without upscaling.
func Thumbnail(data []byte, maxSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty photo")
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
