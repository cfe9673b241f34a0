// Package publish delivers a finished collage and its caption.
//
// Publishing is never retried by the pipeline: a failed delivery surfaces
// once as PUBLISH_FAILED and the caller decides what to do.
package publish

import (
	"context"
	"math/rand/v2"
	"strings"
)

// Post is one finished collage.
type Post struct {
	ID      string // Run identifier, used for file names
	Caption string
	Image   []byte // PNG
}

// Publisher delivers posts.
type Publisher interface {
	Publish(ctx context.Context, post Post) error
}

// CaptionConfig controls the optional caption suffix.
type CaptionConfig struct {
	// Suffixes are candidate tags appended after the term, one at most.
	Suffixes []string
	// SuffixChance is the percentage of posts that get a suffix (0-100).
	SuffixChance int
}

// Caption builds the post text: the term, optionally followed by one
// suffix picked at random.
func Caption(rng *rand.Rand, term string, cfg CaptionConfig) string {
	caption := strings.TrimSpace(term)
	if len(cfg.Suffixes) == 0 || !PercentChance(rng, cfg.SuffixChance) {
		return caption
	}
	return caption + " " + cfg.Suffixes[rng.IntN(len(cfg.Suffixes))]
}

// PercentChance reports true with probability pct/100.
func PercentChance(rng *rand.Rand, pct int) bool {
	switch {
	case pct <= 0:
		return false
	case pct >= 100:
		return true
	}
	return rng.IntN(100) < pct
}
