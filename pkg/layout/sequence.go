package layout

import (
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/poissonfields/pkg/asset"
)

// Default sequencing parameters.
const (
	DefaultMinImages   = 1
	DefaultMaxImages   = 3
	DefaultRotationMin = -60
	DefaultRotationMax = 60
	DefaultSizeMin     = 90
	DefaultSizeMax     = 150
)

// SequenceConfig bounds the random choices made by [NewSequence].
// All ranges are inclusive integers.
type SequenceConfig struct {
	MinImages   int
	MaxImages   int
	RotationMin int // degrees
	RotationMax int // degrees
	SizeMin     int // target longest side in pixels
	SizeMax     int
}

// DefaultSequenceConfig returns the standard collage parameters.
func DefaultSequenceConfig() SequenceConfig {
	return SequenceConfig{
		MinImages:   DefaultMinImages,
		MaxImages:   DefaultMaxImages,
		RotationMin: DefaultRotationMin,
		RotationMax: DefaultRotationMax,
		SizeMin:     DefaultSizeMin,
		SizeMax:     DefaultSizeMax,
	}
}

// Transform is the rotation and scale applied to one image.
type Transform struct {
	RotationDegrees float64 // Shared by every item in a sequence
	TargetSize      float64 // Drawn size of the longest side
	ScaleFactor     float64 // TargetSize / max(width, height)
}

// Item pairs an asset with its transform.
type Item struct {
	Asset     *asset.ImageAsset
	Transform Transform
}

// ScaledSize returns the drawn width and height before rotation.
func (it Item) ScaledSize() (w, h float64) {
	s := it.Transform.ScaleFactor
	return float64(it.Asset.Width) * s, float64(it.Asset.Height) * s
}

// Sequence is an immutable ordered list of items.
type Sequence struct {
	items []Item
}

// SequenceOf builds a sequence from explicit items, in order.
func SequenceOf(items ...Item) Sequence {
	return Sequence{items: slices.Clone(items)}
}

// Len returns the number of items.
func (s Sequence) Len() int { return len(s.items) }

// At returns the i-th item.
func (s Sequence) At(i int) Item { return s.items[i] }

// All iterates items in order.
func (s Sequence) All() iter.Seq2[int, Item] {
	return func(yield func(int, Item) bool) {
		for i, it := range s.items {
			if !yield(i, it) {
				return
			}
		}
	}
}

// NewSequence selects and transforms a subset of set.
//
// K is drawn uniformly from [MinImages, MaxImages] and clamped to len(set);
// the K assets are chosen without replacement by a partial Fisher–Yates
// shuffle and kept in selection order. One rotation is drawn for the whole
// sequence, then one target size per asset.
func NewSequence(rng *rand.Rand, set []*asset.ImageAsset, cfg SequenceConfig) Sequence {
	cfg = cfg.withDefaults()

	k := randInclusive(rng, cfg.MinImages, cfg.MaxImages)
	k = min(k, len(set))
	if k <= 0 {
		return Sequence{}
	}

	idx := make([]int, len(set))
	for i := range idx {
		idx[i] = i
	}
	for i := range k {
		j := i + rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	rotation := float64(randInclusive(rng, cfg.RotationMin, cfg.RotationMax))

	items := make([]Item, k)
	for i := range k {
		a := set[idx[i]]
		target := float64(randInclusive(rng, cfg.SizeMin, cfg.SizeMax))
		var scale float64
		if side := a.MaxSide(); side > 0 {
			scale = target / float64(side)
		}
		items[i] = Item{
			Asset: a,
			Transform: Transform{
				RotationDegrees: rotation,
				TargetSize:      target,
				ScaleFactor:     scale,
			},
		}
	}
	return Sequence{items: items}
}

func (c SequenceConfig) withDefaults() SequenceConfig {
	if c == (SequenceConfig{}) {
		return DefaultSequenceConfig()
	}
	if c.MinImages < 1 {
		c.MinImages = 1
	}
	if c.MaxImages < c.MinImages {
		c.MaxImages = c.MinImages
	}
	if c.RotationMax < c.RotationMin {
		c.RotationMin, c.RotationMax = c.RotationMax, c.RotationMin
	}
	if c.SizeMin < 1 {
		c.SizeMin = 1
	}
	if c.SizeMax < c.SizeMin {
		c.SizeMax = c.SizeMin
	}
	return c
}

// randInclusive draws an integer uniformly from [lo, hi].
func randInclusive(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}
