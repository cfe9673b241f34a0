// Package layout decides which candidates appear on the canvas, how they are
// transformed and where they go.
//
// It has two stages that both draw from a single caller-owned *rand.Rand:
//
//  1. [NewSequence] picks K distinct assets, one shared rotation for the run
//     and an independent target size per asset. The result is a read-only
//     [Sequence] whose order is both placement order and draw order.
//  2. [Engine.Place] assigns each item a position by rejection sampling: a
//     candidate position is accepted when its bounding circle clears every
//     circle placed so far (scaled by the separation factor). After RetryCap
//     rejected samples the last sample is kept and the placement is marked
//     [StateFallback].
//
// Given the same seed and inputs, both stages are fully deterministic.
//
// The collision scan is O(n²) over placed items. That is fine for the handful
// of images a collage holds; larger compositions would need a spatial grid.
package layout
