package layout

import (
	"context"
	"image"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/matzehuels/poissonfields/pkg/asset"
	"github.com/matzehuels/poissonfields/pkg/observability"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
}

func testAsset(name string, w, h int) *asset.ImageAsset {
	return asset.New(name, image.NewNRGBA(image.Rect(0, 0, w, h)), "png")
}

func testSet(n int) []*asset.ImageAsset {
	set := make([]*asset.ImageAsset, n)
	for i := range set {
		set[i] = testAsset(string(rune('a'+i)), 100+i*37, 80+i*53)
	}
	return set
}

// radiusItem returns a square item whose bounding radius is r.
func radiusItem(r float64) Item {
	a := testAsset("sq", 100, 100)
	scale := 2 * r / (100 * math.Sqrt2)
	return Item{Asset: a, Transform: Transform{ScaleFactor: scale, TargetSize: 100 * scale}}
}

func TestNewSequenceSharedRotationAndScaleBand(t *testing.T) {
	cfg := DefaultSequenceConfig()
	for seed := range uint64(200) {
		seq := NewSequence(newRand(seed), testSet(6), cfg)
		if seq.Len() < cfg.MinImages || seq.Len() > cfg.MaxImages {
			t.Fatalf("seed %d: Len = %d", seed, seq.Len())
		}
		rot := seq.At(0).Transform.RotationDegrees
		if rot < float64(cfg.RotationMin) || rot > float64(cfg.RotationMax) {
			t.Fatalf("seed %d: rotation %v out of range", seed, rot)
		}
		seen := map[*asset.ImageAsset]bool{}
		for i, it := range seq.All() {
			if it.Transform.RotationDegrees != rot {
				t.Errorf("seed %d: item %d rotation %v != %v", seed, i, it.Transform.RotationDegrees, rot)
			}
			drawn := it.Transform.ScaleFactor * float64(it.Asset.MaxSide())
			if drawn < float64(cfg.SizeMin)-1e-9 || drawn > float64(cfg.SizeMax)+1e-9 {
				t.Errorf("seed %d: item %d drawn size %v outside [%d,%d]", seed, i, drawn, cfg.SizeMin, cfg.SizeMax)
			}
			if seen[it.Asset] {
				t.Errorf("seed %d: asset selected twice", seed)
			}
			seen[it.Asset] = true
		}
	}
}

func TestNewSequenceCoversRangeEnds(t *testing.T) {
	cfg := SequenceConfig{MinImages: 1, MaxImages: 3, RotationMin: -2, RotationMax: 2, SizeMin: 90, SizeMax: 92}
	rots := map[float64]bool{}
	sizes := map[float64]bool{}
	counts := map[int]bool{}
	for seed := range uint64(500) {
		seq := NewSequence(newRand(seed), testSet(5), cfg)
		counts[seq.Len()] = true
		for _, it := range seq.All() {
			rots[it.Transform.RotationDegrees] = true
			sizes[it.Transform.TargetSize] = true
		}
	}
	if !rots[-2] || !rots[2] {
		t.Errorf("rotation range should be inclusive, saw %v", rots)
	}
	if !sizes[90] || !sizes[92] {
		t.Errorf("size band should be inclusive, saw %v", sizes)
	}
	if !counts[1] || !counts[3] {
		t.Errorf("composition size range should be inclusive, saw %v", counts)
	}
}

func TestNewSequenceClampsToSetSize(t *testing.T) {
	cfg := DefaultSequenceConfig()
	cfg.MinImages, cfg.MaxImages = 3, 3
	seq := NewSequence(newRand(1), testSet(1), cfg)
	if seq.Len() != 1 {
		t.Errorf("Len = %d, want 1", seq.Len())
	}
	if NewSequence(newRand(1), nil, cfg).Len() != 0 {
		t.Error("empty set should give empty sequence")
	}
}

func TestNewSequenceDeterministic(t *testing.T) {
	set := testSet(8)
	a := NewSequence(newRand(42), set, SequenceConfig{})
	b := NewSequence(newRand(42), set, SequenceConfig{})
	if !reflect.DeepEqual(a, b) {
		t.Error("same seed should give the same sequence")
	}
}

func TestFootprintAndExtent(t *testing.T) {
	it := radiusItem(40)
	if r := Footprint(it); math.Abs(r-40) > 1e-9 {
		t.Errorf("Footprint = %v, want 40", r)
	}

	it = Item{Asset: testAsset("r", 200, 100), Transform: Transform{ScaleFactor: 0.5, RotationDegrees: 90}}
	hw, hh := Extent(it)
	if math.Abs(hw-25) > 1e-9 || math.Abs(hh-50) > 1e-9 {
		t.Errorf("Extent at 90° = (%v, %v), want (25, 50)", hw, hh)
	}
	// Rotation does not change the radius
	if r := Footprint(it); math.Abs(r-math.Hypot(100, 50)/2) > 1e-9 {
		t.Errorf("Footprint = %v", r)
	}
}

func TestPlaceSingleItemNoChecks(t *testing.T) {
	e := NewEngine(DefaultWidth, DefaultHeight)
	res := e.Place(context.Background(), newRand(7), SequenceOf(radiusItem(40)))

	if len(res.Placements) != 1 {
		t.Fatalf("placements = %d", len(res.Placements))
	}
	p := res.Placements[0]
	if p.State != StatePlaced || p.Attempts != 1 {
		t.Errorf("state = %v, attempts = %d; want placed on first sample", p.State, p.Attempts)
	}
	if res.Checks != 0 {
		t.Errorf("Checks = %d, want 0", res.Checks)
	}
}

func TestPlaceThreeRadius40(t *testing.T) {
	seq := SequenceOf(radiusItem(40), radiusItem(40), radiusItem(40))
	for seed := range uint64(100) {
		e := NewEngine(900, 450)
		res := e.Place(context.Background(), newRand(seed), seq)
		if len(res.Placements) != 3 {
			t.Fatalf("placements = %d", len(res.Placements))
		}
		for i, p := range res.Placements {
			if p.State == StateFallback {
				if p.Attempts != DefaultRetryCap {
					t.Errorf("seed %d: fallback after %d attempts, want %d", seed, p.Attempts, DefaultRetryCap)
				}
				continue
			}
			for _, q := range res.Placements[:i] {
				if d := math.Hypot(p.X-q.X, p.Y-q.Y); d < 80 {
					t.Errorf("seed %d: centers %v apart, want >= 80", seed, d)
				}
			}
		}
		if res.Degraded > 1 {
			t.Errorf("seed %d: %d degraded placements", seed, res.Degraded)
		}
	}
}

func TestPlaceFallbackAfterRetryCap(t *testing.T) {
	hooks := &degradedHooks{}
	observability.SetPipelineHooks(hooks)
	defer observability.Reset()

	e := NewEngine(10, 10)
	e.Containment = ContainCenter
	res := e.Place(context.Background(), newRand(3), SequenceOf(radiusItem(40), radiusItem(40)))

	first, second := res.Placements[0], res.Placements[1]
	if first.State != StatePlaced {
		t.Errorf("first state = %v", first.State)
	}
	if second.State != StateFallback || second.Attempts != DefaultRetryCap {
		t.Errorf("second = %v after %d attempts; want fallback after %d", second.State, second.Attempts, DefaultRetryCap)
	}
	if res.Degraded != 1 {
		t.Errorf("Degraded = %d, want 1", res.Degraded)
	}
	if res.Checks != DefaultRetryCap {
		t.Errorf("Checks = %d, want %d", res.Checks, DefaultRetryCap)
	}
	if len(hooks.calls) != 1 || hooks.calls[0] != [2]int{1, DefaultRetryCap} {
		t.Errorf("OnPlacementDegraded calls = %v", hooks.calls)
	}
	if second.X < 0 || second.X > 10 || second.Y < 0 || second.Y > 10 {
		t.Errorf("fallback position (%v, %v) outside canvas", second.X, second.Y)
	}
}

func TestPlaceFullContainment(t *testing.T) {
	set := testSet(6)
	for seed := range uint64(100) {
		rng := newRand(seed)
		seq := NewSequence(rng, set, DefaultSequenceConfig())
		res := NewEngine(900, 450).Place(context.Background(), rng, seq)
		for _, p := range res.Placements {
			hw, hh := Extent(p.Item)
			if p.X-hw < -1e-9 || p.X+hw > 900+1e-9 || p.Y-hh < -1e-9 || p.Y+hh > 450+1e-9 {
				t.Errorf("seed %d: box [%v,%v]x[%v,%v] leaves the canvas", seed, p.X-hw, p.X+hw, p.Y-hh, p.Y+hh)
			}
		}
	}
}

func TestPlaceOversizedItemIsCentered(t *testing.T) {
	e := NewEngine(50, 50)
	res := e.Place(context.Background(), newRand(1), SequenceOf(radiusItem(100)))
	p := res.Placements[0]
	if p.X != 25 || p.Y != 25 {
		t.Errorf("oversized item at (%v, %v), want canvas center", p.X, p.Y)
	}
}

func TestPlaceSeparationFactor(t *testing.T) {
	seq := SequenceOf(radiusItem(20), radiusItem(20))
	e := NewEngine(900, 450)
	e.Separation = 2
	for seed := range uint64(50) {
		res := e.Place(context.Background(), newRand(seed), seq)
		a, b := res.Placements[0], res.Placements[1]
		if b.State == StatePlaced && math.Hypot(a.X-b.X, a.Y-b.Y) < 80 {
			t.Errorf("seed %d: separation 2 violated", seed)
		}
	}
}

func TestSequenceAndPlaceDeterministic(t *testing.T) {
	run := func() Result {
		rng := newRand(99)
		seq := NewSequence(rng, testSet(5), DefaultSequenceConfig())
		return NewEngine(900, 450).Place(context.Background(), rng, seq)
	}
	if !reflect.DeepEqual(run(), run()) {
		t.Error("same seed should give identical transforms and positions")
	}
}

func TestParseContainment(t *testing.T) {
	for in, want := range map[string]Containment{"": ContainFull, "full": ContainFull, "center": ContainCenter} {
		got, err := ParseContainment(in)
		if err != nil || got != want {
			t.Errorf("ParseContainment(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseContainment("clip"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

type degradedHooks struct {
	observability.NoopPipelineHooks
	calls [][2]int
}

func (h *degradedHooks) OnPlacementDegraded(_ context.Context, index, attempts int) {
	h.calls = append(h.calls, [2]int{index, attempts})
}
