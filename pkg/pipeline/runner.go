package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/poissonfields/pkg/asset"
	"github.com/matzehuels/poissonfields/pkg/candidate"
	"github.com/matzehuels/poissonfields/pkg/compose"
	perrors "github.com/matzehuels/poissonfields/pkg/errors"
	"github.com/matzehuels/poissonfields/pkg/layout"
	"github.com/matzehuels/poissonfields/pkg/observability"
	"github.com/matzehuels/poissonfields/pkg/publish"
	"github.com/matzehuels/poissonfields/pkg/terms"
)

// Searcher turns a query into candidate image URLs.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]string, error)
}

// Runner executes collage runs.
//
// A Runner holds only collaborators, never per-run state, so one Runner can
// serve concurrent runs with different options.
type Runner struct {
	Searcher Searcher
	Fetcher  candidate.Fetcher
	Decoder  asset.Decoder
	Terms    *terms.Picker
	Logger   *log.Logger

	// Background overrides Options.Background when set, so long-running
	// servers decode the file once.
	Background image.Image
}

// NewRunner creates a runner with the embedded noun list and default decoder.
func NewRunner(s Searcher, f candidate.Fetcher, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Searcher: s,
		Fetcher:  f,
		Decoder:  asset.ImageDecoder{},
		Terms:    terms.Default(),
		Logger:   logger,
	}
}

// Execute runs acquire → sequence → layout → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := r.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	}
	logger = logger.With("seed", opts.Seed)
	rng := NewRand(opts.Seed)

	term := opts.Term
	if term == "" {
		term = r.Terms.Pick(rng)
	}
	result := &Result{
		RunID: uuid.NewString(),
		Term:  term,
		Query: opts.Query(term),
	}
	logger = logger.With("run", result.RunID[:8], "term", term)

	// Stage 1: Acquire
	acquireStart := time.Now()
	set, err := r.acquire(ctx, rng, &opts, result, logger)
	result.Stats.AcquireTime = time.Since(acquireStart)
	observability.Pipeline().OnAcquireComplete(ctx, term, len(set), result.Stats.AcquireTime, err)
	if err != nil {
		return nil, err
	}
	logger.Info("acquired candidates",
		"found", result.Stats.Found,
		"probed", result.Report.Probed,
		"accepted", result.Report.Accepted,
		"duration", result.Stats.AcquireTime)

	// Stage 2 + 3: Sequence and layout
	layoutStart := time.Now()
	seq := layout.NewSequence(rng, set, opts.SequenceConfig())
	containment, _ := layout.ParseContainment(opts.Containment)
	engine := &layout.Engine{
		Width:       float64(opts.Width),
		Height:      float64(opts.Height),
		Separation:  opts.Separation,
		RetryCap:    opts.RetryCap,
		Containment: containment,
		Logger:      logger,
	}
	placed := engine.Place(ctx, rng, seq)
	result.Placements = placed.Placements
	result.Degraded = placed.Degraded
	result.Stats.Placed = len(placed.Placements)
	result.Stats.Checks = placed.Checks
	result.Stats.LayoutTime = time.Since(layoutStart)
	observability.Pipeline().OnLayoutComplete(ctx, len(placed.Placements), placed.Degraded, result.Stats.LayoutTime)

	logger.Info("computed layout",
		"images", len(placed.Placements),
		"rotation", seq.At(0).Transform.RotationDegrees,
		"degraded", placed.Degraded,
		"duration", result.Stats.LayoutTime)

	// Stage 4: Render
	renderStart := time.Now()
	png, err := r.render(&opts, placed.Placements)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Pipeline().OnRenderComplete(ctx, len(png), result.Stats.RenderTime, err)
	if err != nil {
		return nil, err
	}
	result.PNG = png

	logger.Info("rendered collage",
		"bytes", len(png),
		"duration", result.Stats.RenderTime)

	return result, nil
}

// acquire searches, subsamples and probes. The whole stage shares one
// deadline.
func (r *Runner) acquire(ctx context.Context, rng *rand.Rand, opts *Options, result *Result, logger *log.Logger) (candidate.Set, error) {
	if r.Searcher == nil || r.Fetcher == nil {
		return nil, perrors.New(perrors.ErrCodeAcquisition, "runner has no searcher or fetcher")
	}
	observability.Pipeline().OnAcquireStart(ctx, result.Term)

	actx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	urls, err := r.Searcher.Search(actx, result.Query)
	if err != nil {
		if actx.Err() != nil {
			return nil, perrors.Wrap(perrors.ErrCodeTimeout, err, "search %q", result.Query)
		}
		return nil, perrors.Wrap(perrors.ErrCodeAcquisition, err, "search %q via %s", result.Query, r.Searcher.Name())
	}
	result.Stats.Found = len(urls)
	logger.Debug("search results", "provider", r.Searcher.Name(), "urls", len(urls))

	pool := &candidate.Pool{
		Fetcher:     r.Fetcher,
		Decoder:     r.Decoder,
		ProbeLimit:  opts.ProbeLimit,
		Concurrency: opts.Concurrency,
		Logger:      logger,
	}
	set, report, err := pool.Build(actx, Sample(rng, unique(urls), opts.ProbeLimit))
	result.Report = report
	result.Stats.Probed = report.Probed
	result.Stats.Accepted = report.Accepted
	return set, err
}

func (r *Runner) render(opts *Options, placements []layout.Placement) ([]byte, error) {
	c := compose.New(opts.Width, opts.Height)
	c.Mode, _ = compose.ParseBackgroundMode(opts.BackgroundMode)
	c.BackgroundScale = opts.BackgroundScale

	switch {
	case r.Background != nil:
		c.Background = r.Background
	case opts.Background != "":
		bg, err := compose.LoadBackground(opts.Background)
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeRender, err, "background")
		}
		c.Background = bg
	}
	return c.RenderPNG(placements)
}

// Publish hands a finished result to p. Failures carry PUBLISH_FAILED; they
// are not retried.
func (r *Runner) Publish(ctx context.Context, p publish.Publisher, res *Result, caption string) error {
	err := p.Publish(ctx, publish.Post{ID: res.RunID, Caption: caption, Image: res.PNG})
	if err == nil {
		r.Logger.Info("published collage", "run", res.RunID[:8], "caption", caption)
		return nil
	}
	var coded *perrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return perrors.Wrap(perrors.ErrCodePublish, err, "publish run %s", res.RunID)
}

// Sample returns up to n elements of urls chosen uniformly without
// replacement, in random order. The input is not modified.
func Sample(rng *rand.Rand, urls []string, n int) []string {
	out := append([]string(nil), urls...)
	n = min(n, len(out))
	for i := range n {
		j := i + rng.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:n]
}

// unique drops repeated sources, keeping the first occurrence, so repeats in
// the search results do not use up probes.
func unique(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
