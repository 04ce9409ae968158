// Package derivative produces display artifacts (thumbnails, recompressed
// originals) from stored image bytes.
package derivative

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp" // decode-only; webp output falls back to JPEG
)

// ErrDerivative indicates the source bytes could not be decoded as an image.
// Derivative failures are never fatal to the surrounding ingest.
var ErrDerivative = errors.New("derivative generation failed")

// Dimensions probes the pixel size of an image without a full decode.
// Returns (0, 0) when the bytes are not a decodable image.
func Dimensions(src []byte) (width, height int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// Decodable reports whether the bytes carry a decodable image header.
func Decodable(src []byte) bool {
	_, _, err := image.DecodeConfig(bytes.NewReader(src))
	return err == nil
}

// Thumbnail scales the image down to fit within maxWidth x maxHeight,
// preserving aspect ratio and never upsampling, and encodes it as JPEG at
// the given quality (1-100).
func Thumbnail(src []byte, maxWidth, maxHeight, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDerivative, err)
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrDerivative, err)
	}
	return buf.Bytes(), nil
}

// Compress re-encodes the image at the given quality. When either dimension
// exceeds the max bounds the image is also scaled down to fit; images already
// within bounds keep their pixel size. The source format is preserved where
// encodable, otherwise the output is JPEG.
func Compress(src []byte, quality, maxWidth, maxHeight int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrDerivative, err)
	}

	b := img.Bounds()
	if b.Dx() > maxWidth || b.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, encodeFormat(src), imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrDerivative, err)
	}
	return buf.Bytes(), nil
}

func encodeFormat(src []byte) imaging.Format {
	_, name, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return imaging.JPEG
	}
	f, err := imaging.FormatFromExtension(name)
	if err != nil {
		return imaging.JPEG
	}
	return f
}
