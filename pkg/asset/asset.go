// Package asset decodes downloaded images and decides whether they are
// suitable for layering onto a collage.
//
// An image is suitable when its four corner pixels are fully transparent, a
// cheap heuristic for "isolated subject without a background". The check is
// O(1) and looks at nothing but those four pixels.
package asset

import (
	"bytes"
	"image"

	// Formats accepted from image search results.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// ImageAsset is a decoded candidate image. It is immutable once decoded.
type ImageAsset struct {
	Source string      // URL or path the bytes came from
	Image  image.Image // Decoded pixels
	Format string      // Registered format name (png, gif, webp, ...)
	Width  int
	Height int
}

// MaxSide returns the longer of the two dimensions.
func (a *ImageAsset) MaxSide() int {
	return max(a.Width, a.Height)
}

// Decoder turns raw bytes into an image.
type Decoder interface {
	Decode(data []byte) (image.Image, string, error)
}

// ImageDecoder is the default [Decoder]. It accepts every format registered
// with the image package and applies EXIF orientation.
type ImageDecoder struct{}

// Decode sniffs the format from the header and decodes the full image.
func (ImageDecoder) Decode(data []byte) (image.Image, string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// New wraps a decoded image.
func New(source string, img image.Image, format string) *ImageAsset {
	b := img.Bounds()
	return &ImageAsset{
		Source: source,
		Image:  img,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}
