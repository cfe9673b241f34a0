// Package compose renders placed images onto the final canvas.
//
// Rendering is pure: the same background and placements always produce the
// same pixels. The background is drawn first, then every placement in
// sequence order, so later images occlude earlier ones where fallback
// placements overlap.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	perrors "github.com/matzehuels/poissonfields/pkg/errors"
	"github.com/matzehuels/poissonfields/pkg/layout"
)

// BackgroundMode selects how the background image is fitted to the canvas.
type BackgroundMode string

const (
	// BackgroundFill scales and center-crops to cover the whole canvas.
	BackgroundFill BackgroundMode = "fill"
	// BackgroundFit scales to fit inside the canvas, centered on the fill color.
	BackgroundFit BackgroundMode = "fit"
	// BackgroundScale draws at the origin, resized by BackgroundScale.
	BackgroundScale BackgroundMode = "scale"
	// BackgroundNone ignores the background image.
	BackgroundNone BackgroundMode = "none"
)

// ParseBackgroundMode validates a mode name. Empty means fill.
func ParseBackgroundMode(s string) (BackgroundMode, error) {
	switch m := BackgroundMode(s); m {
	case "":
		return BackgroundFill, nil
	case BackgroundFill, BackgroundFit, BackgroundScale, BackgroundNone:
		return m, nil
	}
	return "", fmt.Errorf("unknown background mode %q (want fill, fit, scale or none)", s)
}

// DefaultFill is the canvas color under and around the background.
var DefaultFill = color.NRGBA{R: 0x0b, G: 0x0d, B: 0x1a, A: 0xff}

// Composer draws backgrounds and placements.
type Composer struct {
	Width, Height   int
	Background      image.Image // Optional
	Mode            BackgroundMode
	BackgroundScale float64     // Used by BackgroundScale mode
	Fill            color.Color // Defaults to DefaultFill
	Interpolator    draw.Interpolator
}

// New creates a composer for a width × height canvas.
func New(width, height int) *Composer {
	return &Composer{
		Width:           width,
		Height:          height,
		Mode:            BackgroundFill,
		BackgroundScale: 1,
		Fill:            DefaultFill,
		Interpolator:    draw.CatmullRom,
	}
}

// LoadBackground opens an image file for use as background.
func LoadBackground(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	return img, nil
}

// Render draws the background and then each placement in order onto a new
// canvas. The canvas is owned by the caller once returned.
func (c *Composer) Render(placements []layout.Placement) (*image.NRGBA, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, perrors.New(perrors.ErrCodeRender, "invalid canvas size %dx%d", c.Width, c.Height)
	}
	for i, p := range placements {
		if p.Asset == nil || p.Asset.Image == nil {
			return nil, perrors.New(perrors.ErrCodeRender, "placement %d has no image", i)
		}
		if p.Transform.ScaleFactor <= 0 || math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return nil, perrors.New(perrors.ErrCodeRender, "placement %d has a degenerate transform", i)
		}
	}

	canvas := c.background()
	interp := c.Interpolator
	if interp == nil {
		interp = draw.CatmullRom
	}
	for _, p := range placements {
		src := p.Asset.Image
		interp.Transform(canvas, placementMatrix(p), src, src.Bounds(), draw.Over, nil)
	}
	return canvas, nil
}

// RenderPNG renders and encodes in one step.
func (c *Composer) RenderPNG(placements []layout.Placement) ([]byte, error) {
	img, err := c.Render(placements)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

func (c *Composer) background() *image.NRGBA {
	fill := c.Fill
	if fill == nil {
		fill = DefaultFill
	}
	canvas := imaging.New(c.Width, c.Height, fill)
	bg := c.Background
	if bg == nil || bg.Bounds().Empty() {
		return canvas
	}

	switch c.Mode {
	case BackgroundNone:
		return canvas
	case BackgroundFit:
		fitted := imaging.Fit(bg, c.Width, c.Height, imaging.Lanczos)
		return imaging.PasteCenter(canvas, fitted)
	case BackgroundScale:
		s := c.BackgroundScale
		if s <= 0 {
			s = 1
		}
		b := bg.Bounds()
		w := max(int(math.Round(float64(b.Dx())*s)), 1)
		h := max(int(math.Round(float64(b.Dy())*s)), 1)
		return imaging.Overlay(canvas, imaging.Resize(bg, w, h, imaging.Lanczos), image.Point{}, 1)
	default:
		filled := imaging.Fill(bg, c.Width, c.Height, imaging.Center, imaging.Lanczos)
		return imaging.Overlay(canvas, filled, image.Point{}, 1)
	}
}

// placementMatrix maps source pixels to canvas pixels: move the source
// center to the origin, scale, rotate clockwise by the rotation (y points
// down), then translate to the placement center.
func placementMatrix(p layout.Placement) f64.Aff3 {
	b := p.Asset.Image.Bounds()
	cx := float64(b.Min.X) + float64(b.Dx())/2
	cy := float64(b.Min.Y) + float64(b.Dy())/2

	s := p.Transform.ScaleFactor
	rad := p.Transform.RotationDegrees * math.Pi / 180
	sin, cos := math.Sincos(rad)

	a, bb := s*cos, -s*sin
	d, e := s*sin, s*cos
	return f64.Aff3{
		a, bb, p.X - a*cx - bb*cy,
		d, e, p.Y - d*cx - e*cy,
	}
}

// EncodePNG encodes the canvas. Failures carry RENDER_FAILED.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeRender, err, "encode png")
	}
	return buf.Bytes(), nil
}
