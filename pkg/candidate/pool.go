// Package candidate builds the set of placement-eligible images for one run.
//
// A [Pool] takes the source URLs returned by a search provider, downloads
// and classifies up to ProbeLimit of them concurrently, and returns the
// suitable ones in arrival order (the order of the input list, not the order
// in which downloads happen to finish). Individual failures only drop the
// asset concerned; an empty result is a run-level error.
package candidate

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/poissonfields/pkg/asset"
	perrors "github.com/matzehuels/poissonfields/pkg/errors"
	"github.com/matzehuels/poissonfields/pkg/observability"
)

const (
	// DefaultProbeLimit is the number of sources probed per run.
	DefaultProbeLimit = 10

	// DefaultConcurrency bounds simultaneous downloads.
	DefaultConcurrency = 4
)

// Fetcher retrieves the raw bytes behind a source.
type Fetcher interface {
	FetchBytes(ctx context.Context, source string) ([]byte, error)
}

// FetcherFunc adapts a function to [Fetcher].
type FetcherFunc func(ctx context.Context, source string) ([]byte, error)

// FetchBytes calls f.
func (f FetcherFunc) FetchBytes(ctx context.Context, source string) ([]byte, error) {
	return f(ctx, source)
}

// Set is an ordered list of suitable assets. It is read-only once Build returns.
type Set []*asset.ImageAsset

// Report counts what happened to each probed source.
type Report struct {
	Probed       int // Sources attempted (after dedup and the probe limit)
	Duplicates   int // Sources skipped because they were already seen
	Fetched      int // Downloads that returned bytes
	FetchFailed  int // Downloads that failed
	DecodeFailed int // Payloads that could not be decoded
	Rejected     int // Decoded images without transparent corners
	Accepted     int // Members of the resulting Set
	Duration     time.Duration
}

// Pool fetches and classifies candidate images.
type Pool struct {
	Fetcher     Fetcher
	Decoder     asset.Decoder
	ProbeLimit  int
	Concurrency int
	Logger      *log.Logger
}

// NewPool creates a pool with default limits and a discarding logger.
func NewPool(f Fetcher) *Pool {
	return &Pool{
		Fetcher:     f,
		Decoder:     asset.ImageDecoder{},
		ProbeLimit:  DefaultProbeLimit,
		Concurrency: DefaultConcurrency,
		Logger:      log.New(io.Discard),
	}
}

type outcome int

const (
	outcomeFetchFailed outcome = iota
	outcomeDecodeFailed
	outcomeRejected
	outcomeAccepted
)

type slot struct {
	asset   *asset.ImageAsset
	outcome outcome
}

// Build probes sources and returns the suitable assets in input order.
//
// Duplicate sources are skipped before the probe limit is applied. If ctx is
// cancelled or its deadline passes before every probe completes, Build fails
// with a TIMEOUT error and returns no set. If no source survives, Build fails
// with INSUFFICIENT_CANDIDATES.
func (p *Pool) Build(ctx context.Context, sources []string) (Set, Report, error) {
	start := time.Now()
	logger := p.logger()
	limit := p.ProbeLimit
	if limit <= 0 {
		limit = DefaultProbeLimit
	}

	var report Report
	probe := dedupe(sources, limit, &report)
	report.Probed = len(probe)

	slots := make([]slot, len(probe))
	g := new(errgroup.Group)
	g.SetLimit(max(p.Concurrency, 1))
	for i, src := range probe {
		g.Go(func() error {
			slots[i] = p.probe(ctx, src, logger)
			return nil
		})
	}
	_ = g.Wait()
	report.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, report, perrors.Wrap(perrors.ErrCodeTimeout, err,
			"acquisition did not finish (%d sources probed)", report.Probed)
	}

	set := make(Set, 0, len(slots))
	for _, s := range slots {
		switch s.outcome {
		case outcomeFetchFailed:
			report.FetchFailed++
		case outcomeDecodeFailed:
			report.Fetched++
			report.DecodeFailed++
		case outcomeRejected:
			report.Fetched++
			report.Rejected++
		case outcomeAccepted:
			report.Fetched++
			report.Accepted++
			set = append(set, s.asset)
		}
	}

	logger.Debug("candidate pool built",
		"probed", report.Probed,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"failed", report.FetchFailed+report.DecodeFailed,
		"duration", report.Duration)

	if len(set) == 0 {
		return nil, report, perrors.New(perrors.ErrCodeInsufficientCandidates,
			"no suitable images among %d probed sources", report.Probed)
	}
	return set, report, nil
}

func (p *Pool) probe(ctx context.Context, src string, logger *log.Logger) slot {
	if ctx.Err() != nil {
		return slot{outcome: outcomeFetchFailed}
	}

	data, err := p.Fetcher.FetchBytes(ctx, src)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("fetch failed", "source", src, "err", err)
		}
		observability.Pipeline().OnAssetProbed(ctx, src, false, err)
		return slot{outcome: outcomeFetchFailed}
	}

	a, ok := asset.Classify(src, data, p.Decoder)
	switch {
	case a == nil:
		err := perrors.New(perrors.ErrCodeDecodeWarning, "cannot decode %d bytes", len(data))
		logger.Warn("asset dropped", "source", src, "err", err)
		observability.Pipeline().OnAssetProbed(ctx, src, false, err)
		return slot{outcome: outcomeDecodeFailed}
	case !ok:
		logger.Debug("asset rejected: corners not transparent", "source", src)
		observability.Pipeline().OnAssetProbed(ctx, src, false, nil)
		return slot{outcome: outcomeRejected}
	default:
		observability.Pipeline().OnAssetProbed(ctx, src, true, nil)
		return slot{asset: a, outcome: outcomeAccepted}
	}
}

func (p *Pool) logger() *log.Logger {
	if p.Logger == nil {
		return log.New(io.Discard)
	}
	return p.Logger
}

// dedupe keeps the first occurrence of each source, up to limit entries.
func dedupe(sources []string, limit int, report *Report) []string {
	seen := make(map[string]bool, len(sources))
	out := make([]string, 0, min(limit, len(sources)))
	for _, s := range sources {
		if len(out) == limit {
			break
		}
		if seen[s] {
			report.Duplicates++
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
