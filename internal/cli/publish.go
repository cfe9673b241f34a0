package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/poissonfields/pkg/pipeline"
	"github.com/matzehuels/poissonfields/pkg/publish"
)

// decisionSalt separates the post/caption rolls from the run's own stream,
// so skipping a post never changes which collage a seed produces.
const decisionSalt = 0x9e3779b97f4a7c15

// publishCommand creates the publish command.
func (c *CLI) publishCommand() *cobra.Command {
	var (
		flags  runFlags
		random bool
		pub    PublishConfig
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build one collage and publish it with its caption",
		Long: `Build one collage and publish it with the noun as caption.

Posts go to a webhook when POISSONFIELDS_WEBHOOK_URL (or --webhook) is set,
otherwise PNG and caption files are written to --dir.

With --random the command posts only --post-chance percent of the time and
exits successfully otherwise, which suits a frequent cron schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.publishConfig(cmd, pub)
			opts := flags.options(cmd, c.config.Pipeline)
			return c.runPublish(cmd.Context(), opts, flags, cfg, random)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&random, "random", "r", false, "only post a percentage of the time")
	cmd.Flags().IntVar(&pub.PostChance, "post-chance", defaultPostChance, "percent of --random runs that post")
	cmd.Flags().StringVar(&pub.Dir, "dir", defaultPublishDir, "output directory for the file publisher")
	cmd.Flags().StringVar(&pub.WebhookURL, "webhook", "", "post to this URL instead of writing files")
	cmd.Flags().StringSliceVar(&pub.Suffixes, "suffix", nil, "caption suffix candidates (one is picked at random)")
	cmd.Flags().IntVar(&pub.SuffixChance, "suffix-chance", defaultSuffixChance, "percent of captions that get a suffix")

	return cmd
}

// publishConfig merges set flags on top of the loaded [publish] section.
func (c *CLI) publishConfig(cmd *cobra.Command, flags PublishConfig) PublishConfig {
	cfg := c.config.Publish
	if cmd.Flags().Changed("post-chance") {
		cfg.PostChance = flags.PostChance
	}
	if cmd.Flags().Changed("dir") {
		cfg.Dir = flags.Dir
	}
	if cmd.Flags().Changed("webhook") {
		cfg.WebhookURL = flags.WebhookURL
	}
	if cmd.Flags().Changed("suffix") {
		cfg.Suffixes = flags.Suffixes
	}
	if cmd.Flags().Changed("suffix-chance") {
		cfg.SuffixChance = flags.SuffixChance
	}
	return cfg
}

// runPublish rolls the post chance, runs the pipeline and publishes.
func (c *CLI) runPublish(ctx context.Context, opts pipeline.Options, flags runFlags, cfg PublishConfig, random bool) error {
	decide := pipeline.NewRand(opts.Seed ^ decisionSalt)
	if random && !publish.PercentChance(decide, cfg.PostChance) {
		printInfo("Skipping (posting %d%% of runs)", cfg.PostChance)
		return nil
	}

	runner, closer, err := c.newRunner(ctx, flags.src, flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer closer.Close()

	opts.Logger = c.Logger
	res, err := c.execute(ctx, runner, opts, true)
	if err != nil {
		return err
	}

	caption := publish.Caption(decide, res.Term, publish.CaptionConfig{
		Suffixes:     cfg.Suffixes,
		SuffixChance: cfg.SuffixChance,
	})
	publisher, target := newPublisher(cfg)
	if err := runner.Publish(ctx, publisher, res, caption); err != nil {
		printError("Publish failed")
		return err
	}

	printSuccess("Published %s", StyleHighlight.Render(caption))
	printKeyValue("target", target)
	if fp, ok := publisher.(*publish.File); ok {
		printFile(fp.Path(res.RunID))
	}
	printStats(res)
	return nil
}

// newPublisher returns the webhook publisher when a URL is configured and
// the directory publisher otherwise, plus a display name for the target.
func newPublisher(cfg PublishConfig) (publish.Publisher, string) {
	if cfg.WebhookURL != "" {
		return publish.NewWebhook(cfg.WebhookURL, cfg.WebhookToken), cfg.WebhookURL
	}
	return publish.NewFile(cfg.Dir), cfg.Dir
}
