package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matzehuels/poissonfields/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// The persistent --env-file and --config flags are resolved before any
// subcommand runs, so every command sees the same merged configuration in
// c.config.
func (c *CLI) RootCommand() *cobra.Command {
	var cfgFile, envFile string

	root := &cobra.Command{
		Use:   appName,
		Short: "Poissonfields scatters transparent images across a canvas",
		Long: `Poissonfields searches the web for transparent images of a random noun,
scatters a few of them across a canvas without overlap, and posts the
result with the noun as caption.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			path, explicit := cfgFile, cfgFile != ""
			if !explicit {
				path, _ = configPath()
			}
			cfg, err := loadConfig(path, explicit)
			if err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file with BING_KEY and friends")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/poissonfields/config.toml)")

	root.AddCommand(c.composeCommand())
	root.AddCommand(c.publishCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

const defaultEnvFile = ".env"

// loadEnvFile exports variables from a dotenv file. Variables already set in
// the process environment win. A missing default file is ignored.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}
