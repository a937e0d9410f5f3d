package main

import (
	"context"
	"os"

	"mediadrop/internal/app"
	"mediadrop/internal/filesystem"
	"mediadrop/internal/logging"
	"mediadrop/internal/startup"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mediadrop",
		Short: "Shrink media and publish it to Blossom servers",
		Long: `mediadrop transcodes videos, downscales images and uploads the result to
an ordered list of Blossom servers, falling back to a multipart host or an
S3 bucket when none accepts it.

Configuration comes from the TOML file named by --config (or MEDIADROP_CONFIG)
with environment variables taking precedence.`,
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetOutput(cmd.ErrOrStderr())
			if opts.verbose {
				logging.SetLevel(logging.LevelDebug)
			} else if os.Getenv("LOG_LEVEL") == "" {
				logging.SetLevel(logging.LevelWarn)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("MEDIADROP_CONFIG"), "TOML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every server attempt and pipeline step")

	cmd.AddCommand(
		newUploadCmd(opts),
		newServersCmd(opts),
		newDeleteCmd(opts),
		newHistoryCmd(opts),
		newKeygenCmd(),
	)
	return cmd
}

// load reads the configuration without the gateway's startup banner.
func (o *rootOptions) load() (*startup.Config, error) {
	return startup.Load(o.configPath)
}

// build loads the configuration and wires the upload stack. History is opened
// only when its directory already exists.
func (o *rootOptions) build(ctx context.Context, extra app.Options) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	if info, err := filesystem.StatWithRetry(cfg.DatabaseDir, filesystem.DefaultRetryConfig()); err == nil && info.IsDir() {
		extra.History = true
	}
	return app.Build(ctx, cfg, extra)
}
