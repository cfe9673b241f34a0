package layout

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/poissonfields/pkg/observability"
)

// Default engine parameters.
const (
	DefaultWidth      = 900
	DefaultHeight     = 450
	DefaultSeparation = 1.0
	DefaultRetryCap   = 100
)

// Containment controls how much of an image must stay on the canvas.
type Containment int

const (
	// ContainFull keeps the rotated bounding box inside the canvas. When the
	// box is larger than the canvas on an axis, the center is pinned to the
	// middle of that axis.
	ContainFull Containment = iota

	// ContainCenter only keeps the center inside; the drawn extent is clipped.
	ContainCenter
)

// ParseContainment maps "full" and "center" to a Containment.
func ParseContainment(s string) (Containment, error) {
	switch s {
	case "", "full":
		return ContainFull, nil
	case "center":
		return ContainCenter, nil
	}
	return ContainFull, fmt.Errorf("unknown containment %q (want full or center)", s)
}

func (c Containment) String() string {
	if c == ContainCenter {
		return "center"
	}
	return "full"
}

// State is the position of one item in the placement state machine.
type State int

const (
	StatePlacing  State = iota // Sampling candidate positions
	StatePlaced                // A sample cleared every earlier placement
	StateFallback              // Retry cap exhausted; last sample kept
)

func (s State) String() string {
	switch s {
	case StatePlacing:
		return "placing"
	case StatePlaced:
		return "placed"
	case StateFallback:
		return "fallback"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Placement is an item with its final canvas position. X and Y are the
// center of the transformed image.
type Placement struct {
	Item
	X, Y     float64
	Radius   float64 // Bounding circle radius
	Attempts int     // Samples drawn, at least 1
	State    State
}

// Result is the outcome of [Engine.Place].
type Result struct {
	Placements []Placement
	Degraded   int // Placements in StateFallback
	Checks     int // Pairwise distance checks performed
}

// Engine places a sequence onto a width × height canvas.
type Engine struct {
	Width       float64
	Height      float64
	Separation  float64 // Multiplier on the sum of radii
	RetryCap    int     // Maximum samples per item
	Containment Containment
	Logger      *log.Logger
}

// NewEngine creates an engine with default separation and retry cap.
func NewEngine(width, height float64) *Engine {
	return &Engine{
		Width:      width,
		Height:     height,
		Separation: DefaultSeparation,
		RetryCap:   DefaultRetryCap,
		Logger:     log.New(io.Discard),
	}
}

// Footprint returns the bounding circle radius of an item: half the diagonal
// of its scaled size. The radius does not depend on rotation.
func Footprint(it Item) float64 {
	w, h := it.ScaledSize()
	return math.Hypot(w, h) / 2
}

// Extent returns the half-width and half-height of the item's rotated,
// scaled bounding box.
func Extent(it Item) (hw, hh float64) {
	w, h := it.ScaledSize()
	rad := it.Transform.RotationDegrees * math.Pi / 180
	sin, cos := math.Abs(math.Sin(rad)), math.Abs(math.Cos(rad))
	return (w*cos + h*sin) / 2, (w*sin + h*cos) / 2
}

// Place assigns positions to every item in order. It always terminates after
// at most Len() × RetryCap samples.
func (e *Engine) Place(ctx context.Context, rng *rand.Rand, seq Sequence) Result {
	retryCap := max(e.RetryCap, 1)
	sep := e.Separation
	if sep <= 0 {
		sep = DefaultSeparation
	}
	logger := e.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	res := Result{Placements: make([]Placement, 0, seq.Len())}
	for i, item := range seq.All() {
		p := Placement{Item: item, Radius: Footprint(item), State: StatePlacing}
		xlo, xhi, ylo, yhi := e.bounds(item)

		for p.State == StatePlacing {
			p.Attempts++
			p.X = xlo + rng.Float64()*(xhi-xlo)
			p.Y = ylo + rng.Float64()*(yhi-ylo)

			switch {
			case clears(p, res.Placements, sep, &res.Checks):
				p.State = StatePlaced
			case p.Attempts >= retryCap:
				p.State = StateFallback
			}
		}

		if p.State == StateFallback {
			res.Degraded++
			logger.Warn("placement degraded: retry cap exhausted",
				"index", i,
				"attempts", p.Attempts,
				"source", item.Asset.Source)
			observability.Pipeline().OnPlacementDegraded(ctx, i, p.Attempts)
		}
		res.Placements = append(res.Placements, p)
	}
	return res
}

// bounds returns the sampling rectangle for an item's center.
func (e *Engine) bounds(it Item) (xlo, xhi, ylo, yhi float64) {
	if e.Containment == ContainCenter {
		return 0, e.Width, 0, e.Height
	}
	hw, hh := Extent(it)
	xlo, xhi = axisBounds(hw, e.Width)
	ylo, yhi = axisBounds(hh, e.Height)
	return
}

func axisBounds(half, size float64) (lo, hi float64) {
	if 2*half >= size {
		return size / 2, size / 2
	}
	return half, size - half
}

// clears reports whether p keeps its distance from every placed item.
// The scan is linear in len(placed).
func clears(p Placement, placed []Placement, sep float64, checks *int) bool {
	for _, q := range placed {
		*checks++
		if math.Hypot(p.X-q.X, p.Y-q.Y) < (p.Radius+q.Radius)*sep {
			return false
		}
	}
	return true
}
