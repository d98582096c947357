// Package imageprocessor normalises uploaded course covers before they are
// stored.
package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const (
	CoverMaxWidth  = 1280
	CoverMaxHeight = 720
	CoverQuality   = 85
	MaxWorkers     = 3

	CoverContentType = "image/jpeg"
	CoverExtension   = ".jpg"
)

// throttle bounds concurrent decodes, a large image can take a lot of memory
var throttle = make(chan struct{}, MaxWorkers)

// NormalizeCover decodes the image, applies EXIF orientation, fits it into
// the cover box without upscaling and re-encodes it as JPEG.
func NormalizeCover(r io.Reader) ([]byte, error) {
	throttle <- struct{}{}
	defer func() { <-throttle }()

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = fitCover(img)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(CoverQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

func fitCover(img image.Image) image.Image {
	b := img.Bounds()
	if b.Dx() <= CoverMaxWidth && b.Dy() <= CoverMaxHeight {
		return img
	}
	return imaging.Fit(img, CoverMaxWidth, CoverMaxHeight, imaging.Lanczos)
}
