package asset

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// transparentFrame returns a w×h image with an opaque interior and fully
// transparent corners.
func transparentFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIsSuitable(t *testing.T) {
	opaque := color.NRGBA{A: 255}
	faint := color.NRGBA{A: 1}

	tests := []struct {
		name   string
		corner image.Point
		c      color.NRGBA
		want   bool
	}{
		{"all transparent", image.Point{-1, -1}, color.NRGBA{}, true},
		{"top-left opaque", image.Point{0, 0}, opaque, false},
		{"bottom-left opaque", image.Point{0, 9}, opaque, false},
		{"top-right opaque", image.Point{19, 0}, opaque, false},
		{"bottom-right faint", image.Point{19, 9}, faint, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := transparentFrame(20, 10)
			if tt.corner.X >= 0 {
				img.SetNRGBA(tt.corner.X, tt.corner.Y, tt.c)
			}
			if got := IsSuitable(img); got != tt.want {
				t.Errorf("IsSuitable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSuitableOffsetBounds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(5, 5, 15, 15))
	if !IsSuitable(img) {
		t.Error("transparent image with offset bounds should be suitable")
	}
	img.SetNRGBA(14, 14, color.NRGBA{A: 255})
	if IsSuitable(img) {
		t.Error("corner is relative to bounds, (14,14) is bottom-right")
	}
}

func TestIsSuitableDegenerate(t *testing.T) {
	if IsSuitable(nil) {
		t.Error("nil image should not be suitable")
	}
	if IsSuitable(image.NewNRGBA(image.Rect(0, 0, 0, 5))) {
		t.Error("zero-area image should not be suitable")
	}
	// 1×1: all four corners are the same pixel
	if !IsSuitable(image.NewNRGBA(image.Rect(0, 0, 1, 1))) {
		t.Error("single transparent pixel should be suitable")
	}
}

func TestClassify(t *testing.T) {
	data := encodePNG(t, transparentFrame(30, 20))

	a, ok := Classify("https://a.example/x.png", data, nil)
	if !ok {
		t.Fatal("transparent PNG should be suitable")
	}
	if a.Width != 30 || a.Height != 20 || a.MaxSide() != 30 {
		t.Errorf("dims = %dx%d max %d", a.Width, a.Height, a.MaxSide())
	}
	if a.Format != "png" {
		t.Errorf("Format = %q", a.Format)
	}
	if a.Source != "https://a.example/x.png" {
		t.Errorf("Source = %q", a.Source)
	}
}

func TestClassifyJPEGNeverSuitable(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, transparentFrame(16, 16), nil); err != nil {
		t.Fatal(err)
	}
	a, ok := Classify("x.jpg", buf.Bytes(), ImageDecoder{})
	if ok {
		t.Error("JPEG has no alpha channel and must be rejected")
	}
	if a == nil {
		t.Error("decodable JPEG should still return the asset")
	}
}

func TestClassifyCorruptData(t *testing.T) {
	a, ok := Classify("bad", []byte("definitely not an image"), nil)
	if ok || a != nil {
		t.Errorf("Classify(corrupt) = %v, %v; want nil, false", a, ok)
	}

	data := encodePNG(t, transparentFrame(8, 8))
	a, ok = Classify("truncated", data[:len(data)/2], nil)
	if ok || a != nil {
		t.Errorf("Classify(truncated) = %v, %v; want nil, false", a, ok)
	}
}

type failingDecoder struct{}

func (failingDecoder) Decode([]byte) (image.Image, string, error) {
	return nil, "", errors.New("boom")
}

func TestClassifyDecoderError(t *testing.T) {
	if _, ok := Classify("x", []byte{1}, failingDecoder{}); ok {
		t.Error("decoder error should yield false")
	}
}
