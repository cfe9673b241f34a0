package asset

import "image"

// IsSuitable reports whether all four corner pixels of img have alpha 0.
// Corners are taken relative to the image bounds. Empty images are never
// suitable.
func IsSuitable(img image.Image) bool {
	if img == nil {
		return false
	}
	b := img.Bounds()
	if b.Empty() {
		return false
	}
	corners := [4]image.Point{
		{b.Min.X, b.Min.Y},
		{b.Min.X, b.Max.Y - 1},
		{b.Max.X - 1, b.Min.Y},
		{b.Max.X - 1, b.Max.Y - 1},
	}
	for _, p := range corners {
		if _, _, _, a := img.At(p.X, p.Y).RGBA(); a != 0 {
			return false
		}
	}
	return true
}

// Classify decodes data and applies [IsSuitable].
//
// A decode failure yields (nil, false) rather than an error so one corrupt
// download never aborts a run. Callers that want to log the failure can
// tell it apart from a rejection by the nil asset.
func Classify(source string, data []byte, dec Decoder) (*ImageAsset, bool) {
	if dec == nil {
		dec = ImageDecoder{}
	}
	img, format, err := dec.Decode(data)
	if err != nil || img == nil {
		return nil, false
	}
	a := New(source, img, format)
	return a, IsSuitable(img)
}
