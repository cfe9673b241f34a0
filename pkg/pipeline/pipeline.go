// Package pipeline runs one collage from term to PNG.
//
// The CLI, the HTTP server and tests all share this code path so every entry
// point behaves the same way.
//
// # Architecture
//
// A run has four stages, all drawing randomness from one seeded generator:
//
//  1. Acquire: pick a term, search "<prefix><term>", sample the results down
//     to the probe limit and build the candidate set (bounded by Timeout)
//  2. Sequence: choose K candidates, one shared rotation and per-image sizes
//  3. Layout: place each image by rejection sampling
//  4. Render: draw background and images, encode PNG
//
// Publishing is a separate step so callers can inspect the result first.
//
// # Usage
//
//	runner := pipeline.NewRunner(provider, client, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Seed: 7})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(result.RunID+".png", result.PNG, 0o644)
//
// A run either returns a complete Result or a single error carrying one of
// the codes from the errors package; there is no partial output.
package pipeline

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/poissonfields/pkg/candidate"
	"github.com/matzehuels/poissonfields/pkg/compose"
	perrors "github.com/matzehuels/poissonfields/pkg/errors"
	"github.com/matzehuels/poissonfields/pkg/layout"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API, and Tests
// =============================================================================

const (
	// DefaultSeed is used when Options.Seed is zero.
	DefaultSeed = uint64(42)

	// DefaultQueryPrefix biases search results toward cut-out images.
	DefaultQueryPrefix = "transparent "

	// DefaultTimeout bounds search plus all downloads.
	DefaultTimeout = 60 * time.Second

	// MaxCanvasPixels caps Width*Height (64 MiB of NRGBA).
	MaxCanvasPixels = 4096 * 4096
)

// NewRand returns the generator used for a run.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one run. Zero values take defaults. The TOML tags match
// the keys of the CLI config file.
type Options struct {
	// Acquisition
	Term        string        `toml:"term"`         // Empty picks a random noun
	QueryPrefix string        `toml:"query_prefix"` // Prepended to the term
	ProbeLimit  int           `toml:"probe_limit"`
	Concurrency int           `toml:"concurrency"`
	Timeout     time.Duration `toml:"timeout"`

	// Sequencing
	MinImages   int `toml:"min_images"`
	MaxImages   int `toml:"max_images"`
	RotationMin int `toml:"rotation_min"`
	RotationMax int `toml:"rotation_max"`
	SizeMin     int `toml:"size_min"`
	SizeMax     int `toml:"size_max"`

	// Layout
	Width       int     `toml:"width"`
	Height      int     `toml:"height"`
	Separation  float64 `toml:"separation"`
	RetryCap    int     `toml:"retry_cap"`
	Containment string  `toml:"containment"` // full or center

	// Render
	Background      string  `toml:"background"`      // Image path, optional
	BackgroundMode  string  `toml:"background_mode"` // fill, fit, scale, none
	BackgroundScale float64 `toml:"background_scale"`

	Seed uint64 `toml:"seed"`

	// Runtime options (not serialized)

	// Logger replaces the runner's logger for this run, e.g. a logger
	// tagged with a request ID.
	Logger *log.Logger `toml:"-"`

	// NoRotation keeps a zero rotation range instead of defaulting it.
	NoRotation bool `toml:"no_rotation"`

	validated bool
}

// ValidateAndSetDefaults fills zero fields and checks the ranges.
// It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.setDefaults()
	if err := o.validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

func (o *Options) setDefaults() {
	if o.QueryPrefix == "" {
		o.QueryPrefix = DefaultQueryPrefix
	}
	if o.ProbeLimit == 0 {
		o.ProbeLimit = candidate.DefaultProbeLimit
	}
	if o.Concurrency == 0 {
		o.Concurrency = candidate.DefaultConcurrency
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MinImages == 0 && o.MaxImages == 0 {
		o.MinImages, o.MaxImages = layout.DefaultMinImages, layout.DefaultMaxImages
	}
	if o.RotationMin == 0 && o.RotationMax == 0 && !o.NoRotation {
		o.RotationMin, o.RotationMax = layout.DefaultRotationMin, layout.DefaultRotationMax
	}
	if o.SizeMin == 0 && o.SizeMax == 0 {
		o.SizeMin, o.SizeMax = layout.DefaultSizeMin, layout.DefaultSizeMax
	}
	if o.Width == 0 {
		o.Width = layout.DefaultWidth
	}
	if o.Height == 0 {
		o.Height = layout.DefaultHeight
	}
	if o.Separation == 0 {
		o.Separation = layout.DefaultSeparation
	}
	if o.RetryCap == 0 {
		o.RetryCap = layout.DefaultRetryCap
	}
	if o.BackgroundScale == 0 {
		o.BackgroundScale = 1
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
}

func (o *Options) validate() error {
	if o.Term != "" {
		if err := perrors.ValidateTerm(o.Term); err != nil {
			return err
		}
	}
	positives := []struct {
		name string
		v    float64
	}{
		{"probe_limit", float64(o.ProbeLimit)},
		{"concurrency", float64(o.Concurrency)},
		{"timeout", float64(o.Timeout)},
		{"min_images", float64(o.MinImages)},
		{"size_min", float64(o.SizeMin)},
		{"width", float64(o.Width)},
		{"height", float64(o.Height)},
		{"separation", o.Separation},
		{"retry_cap", float64(o.RetryCap)},
		{"background_scale", o.BackgroundScale},
	}
	for _, p := range positives {
		if err := perrors.ValidatePositive(p.name, p.v); err != nil {
			return err
		}
	}
	if int64(o.Width)*int64(o.Height) > MaxCanvasPixels {
		return perrors.New(perrors.ErrCodeInvalidInput,
			"canvas %dx%d exceeds %d pixels", o.Width, o.Height, MaxCanvasPixels)
	}
	ranges := []struct {
		name   string
		lo, hi int
	}{
		{"images", o.MinImages, o.MaxImages},
		{"rotation", o.RotationMin, o.RotationMax},
		{"size", o.SizeMin, o.SizeMax},
	}
	for _, r := range ranges {
		if err := perrors.ValidateRange(r.name, float64(r.lo), float64(r.hi)); err != nil {
			return err
		}
	}
	if _, err := layout.ParseContainment(o.Containment); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "containment")
	}
	if _, err := compose.ParseBackgroundMode(o.BackgroundMode); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "background_mode")
	}
	return nil
}

// SequenceConfig returns the sequencer parameters.
func (o *Options) SequenceConfig() layout.SequenceConfig {
	return layout.SequenceConfig{
		MinImages:   o.MinImages,
		MaxImages:   o.MaxImages,
		RotationMin: o.RotationMin,
		RotationMax: o.RotationMax,
		SizeMin:     o.SizeMin,
		SizeMax:     o.SizeMax,
	}
}

// Query returns the search query for term.
func (o *Options) Query(term string) string {
	return o.QueryPrefix + term
}

// =============================================================================
// Result
// =============================================================================

// Result is a finished collage.
type Result struct {
	RunID      string // Random UUID, used for file names and log correlation
	Term       string
	Query      string
	PNG        []byte
	Placements []layout.Placement
	Degraded   int // Placements that hit the retry cap
	Report     candidate.Report
	Stats      Stats
}

// Stats holds per-stage timings and counts.
type Stats struct {
	Found       int // URLs returned by the search
	Probed      int
	Accepted    int
	Placed      int
	Checks      int
	AcquireTime time.Duration
	LayoutTime  time.Duration
	RenderTime  time.Duration
}

// String formats the stats for logs.
func (s Stats) String() string {
	return fmt.Sprintf("found=%d probed=%d accepted=%d placed=%d checks=%d acquire=%s layout=%s render=%s",
		s.Found, s.Probed, s.Accepted, s.Placed, s.Checks,
		s.AcquireTime.Round(time.Millisecond), s.LayoutTime.Round(time.Microsecond), s.RenderTime.Round(time.Millisecond))
}
