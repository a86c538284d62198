package ocr

import (
	"bytes"
	"context"
	"io"

	"github.com/disintegration/imaging"
)

// DefaultMaxSide is the longest edge, in pixels, kept by Preprocessed.
const DefaultMaxSide = 2048

// Preprocessed normalizes photos before handing them to another TextSource:
// EXIF orientation is applied, large images are scaled down to MaxSide on
// their longest edge and the result is re-encoded as JPEG.
type Preprocessed struct {
	Source  TextSource
	MaxSide int
}

// NewPreprocessed wraps src with the default size limit.
func NewPreprocessed(src TextSource) *Preprocessed {
	return &Preprocessed{Source: src, MaxSide: DefaultMaxSide}
}

// ImageText implements TextSource.
func (p *Preprocessed) ImageText(ctx context.Context, image io.Reader) (*Result, error) {
	const op = "Preprocess"

	data, err := readImage(image)
	if err != nil {
		return nil, wrapError(op, err, "")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, wrapError(op, ErrUnsupportedImage, err.Error())
	}

	b := img.Bounds()
	if p.MaxSide > 0 && (b.Dx() > p.MaxSide || b.Dy() > p.MaxSide) {
		if b.Dx() >= b.Dy() {
			img = imaging.Resize(img, p.MaxSide, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, p.MaxSide, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, wrapError(op, err, "re-encoding image")
	}
	return p.Source.ImageText(ctx, &buf)
}
