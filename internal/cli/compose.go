package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/matzehuels/poissonfields/pkg/candidate"
	"github.com/matzehuels/poissonfields/pkg/compose"
	"github.com/matzehuels/poissonfields/pkg/layout"
	"github.com/matzehuels/poissonfields/pkg/pipeline"
)

// sourceFlags overrides the configured image provider.
type sourceFlags struct {
	urls    []string
	urlFile string
}

// runFlags holds the pipeline flags shared by compose and publish.
type runFlags struct {
	opts    pipeline.Options
	src     sourceFlags
	noCache bool
}

// register adds the pipeline flags to cmd. Defaults shown in help are the
// pipeline defaults; only flags the user sets override the config file.
func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()

	// Acquisition
	fs.StringVarP(&f.opts.Term, "term", "t", "", "noun to search for (default: random from the word list)")
	fs.StringVar(&f.opts.QueryPrefix, "query-prefix", pipeline.DefaultQueryPrefix, "text prepended to the term in the search query")
	fs.IntVar(&f.opts.ProbeLimit, "probe-limit", candidate.DefaultProbeLimit, "search results to download and classify")
	fs.IntVar(&f.opts.Concurrency, "concurrency", candidate.DefaultConcurrency, "parallel downloads")
	fs.DurationVar(&f.opts.Timeout, "timeout", pipeline.DefaultTimeout, "deadline for search plus downloads")
	fs.StringSliceVar(&f.src.urls, "urls", nil, "use these image URLs instead of searching")
	fs.StringVar(&f.src.urlFile, "url-file", "", "read image URLs from a file, one per line")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the download cache")

	// Sequencing
	fs.IntVar(&f.opts.MinImages, "min-images", layout.DefaultMinImages, "minimum images per collage")
	fs.IntVar(&f.opts.MaxImages, "max-images", layout.DefaultMaxImages, "maximum images per collage")
	fs.IntVar(&f.opts.RotationMin, "rotation-min", layout.DefaultRotationMin, "minimum shared rotation in degrees")
	fs.IntVar(&f.opts.RotationMax, "rotation-max", layout.DefaultRotationMax, "maximum shared rotation in degrees")
	fs.BoolVar(&f.opts.NoRotation, "no-rotation", false, "draw every image upright")
	fs.IntVar(&f.opts.SizeMin, "size-min", layout.DefaultSizeMin, "minimum longest side in pixels")
	fs.IntVar(&f.opts.SizeMax, "size-max", layout.DefaultSizeMax, "maximum longest side in pixels")

	// Layout
	fs.IntVar(&f.opts.Width, "width", layout.DefaultWidth, "canvas width in pixels")
	fs.IntVar(&f.opts.Height, "height", layout.DefaultHeight, "canvas height in pixels")
	fs.Float64Var(&f.opts.Separation, "separation", layout.DefaultSeparation, "minimum center distance as a multiple of the summed radii")
	fs.IntVar(&f.opts.RetryCap, "retry-cap", layout.DefaultRetryCap, "position samples per image before accepting an overlap")
	fs.StringVar(&f.opts.Containment, "containment", layout.ContainFull.String(), "keep images inside the canvas: full or center")

	// Render
	fs.StringVar(&f.opts.Background, "background", "", "background image path")
	fs.StringVar(&f.opts.BackgroundMode, "background-mode", string(compose.BackgroundFill), "background placement: fill, fit, scale, none")
	fs.Float64Var(&f.opts.BackgroundScale, "background-scale", 1, "background scale factor for --background-mode=scale")

	fs.Uint64Var(&f.opts.Seed, "seed", 0, "random seed (0 derives one from the clock)")
}

// options merges flags the user set on top of base.
func (f *runFlags) options(cmd *cobra.Command, base pipeline.Options) pipeline.Options {
	o := base
	v := f.opts
	overrides := []struct {
		name  string
		apply func()
	}{
		{"term", func() { o.Term = v.Term }},
		{"query-prefix", func() { o.QueryPrefix = v.QueryPrefix }},
		{"probe-limit", func() { o.ProbeLimit = v.ProbeLimit }},
		{"concurrency", func() { o.Concurrency = v.Concurrency }},
		{"timeout", func() { o.Timeout = v.Timeout }},
		{"min-images", func() { o.MinImages = v.MinImages }},
		{"max-images", func() { o.MaxImages = v.MaxImages }},
		{"rotation-min", func() { o.RotationMin = v.RotationMin }},
		{"rotation-max", func() { o.RotationMax = v.RotationMax }},
		{"no-rotation", func() { o.NoRotation = v.NoRotation }},
		{"size-min", func() { o.SizeMin = v.SizeMin }},
		{"size-max", func() { o.SizeMax = v.SizeMax }},
		{"width", func() { o.Width = v.Width }},
		{"height", func() { o.Height = v.Height }},
		{"separation", func() { o.Separation = v.Separation }},
		{"retry-cap", func() { o.RetryCap = v.RetryCap }},
		{"containment", func() { o.Containment = v.Containment }},
		{"background", func() { o.Background = v.Background }},
		{"background-mode", func() { o.BackgroundMode = v.BackgroundMode }},
		{"background-scale", func() { o.BackgroundScale = v.BackgroundScale }},
		{"seed", func() { o.Seed = v.Seed }},
	}
	for _, ov := range overrides {
		if cmd.Flags().Changed(ov.name) {
			ov.apply()
		}
	}
	if o.NoRotation {
		o.RotationMin, o.RotationMax = 0, 0
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	return o
}

// composeCommand creates the compose command.
func (c *CLI) composeCommand() *cobra.Command {
	var (
		flags  runFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Build one collage and write it as PNG",
		Long: `Build one collage and write it as PNG.

A noun is picked at random (or taken from --term), images for
"transparent <noun>" are searched and downloaded, and the ones with fully
transparent corners are scattered across the canvas with one shared
rotation. Pass the printed seed back with --seed to reproduce a run
against the same search results.

Images come from Bing when BING_KEY is set, or from --urls / --url-file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd, c.config.Pipeline)
			return c.runCompose(cmd.Context(), opts, flags, output)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <term>.png, - for stdout)")

	return cmd
}

// runCompose executes one run and writes the PNG.
func (c *CLI) runCompose(ctx context.Context, opts pipeline.Options, flags runFlags, output string) error {
	runner, closer, err := c.newRunner(ctx, flags.src, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer closer.Close()

	opts.Logger = c.Logger
	res, err := c.execute(ctx, runner, opts, output != "-")
	if err != nil {
		return err
	}

	if output == "-" {
		_, err := os.Stdout.Write(res.PNG)
		return err
	}
	if output == "" {
		output = fileName(res.Term) + ".png"
	}
	if err := os.WriteFile(output, res.PNG, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printSuccess("Composed %s", StyleHighlight.Render(res.Term))
	printFile(output)
	printStats(res)
	printNextStep("Reproduce", fmt.Sprintf("%s compose --term %q --seed %d", appName, res.Term, opts.Seed))
	return nil
}

// execute runs the pipeline behind a spinner when interactive output is
// wanted.
func (c *CLI) execute(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options, interactive bool) (*pipeline.Result, error) {
	prog := newProgress(c.Logger)
	if !interactive || !isTerminal(os.Stderr) {
		res, err := runner.Execute(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("compose: %w", err)
		}
		return res, nil
	}

	spinner := newSpinnerWithContext(ctx, "Composing collage...")
	spinner.Start()
	res, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Collage failed")
		return nil, fmt.Errorf("compose: %w", err)
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Composed %d images for %q", len(res.Placements), res.Term))
	return res, nil
}

// fileName turns a term into a safe file stem.
func fileName(term string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return unicode.ToLower(r)
		}
		return '-'
	}, strings.TrimSpace(term))
	name = strings.Trim(name, "-")
	if name == "" {
		return "collage"
	}
	return name
}
