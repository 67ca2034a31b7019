package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"idschooldata/internal/app"
	"idschooldata/internal/config"
	"idschooldata/internal/infrastructure"
	"idschooldata/internal/services"
	"idschooldata/pkg/contracts"
)

// cli carries the state shared by every subcommand
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string

	// fetcher replaces the configured source when set
	fetcher services.RawFetcher
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	return (&cli{stdout: stdout, stderr: stderr}).rootCommand()
}

func (c *cli) rootCommand() *cobra.Command {
	rc := &cobra.Command{
		Use:   "idschooldata",
		Short: "Idaho school enrollment data, normalized.",
		Long: `Downloads the Idaho State Department of Education historical enrollment
workbooks and normalizes them into one table per school year, at state,
district and campus level, in wide or tidy shape.

Configuration is read from --config (or IDSCHOOL_CONFIG, or idschooldata.yaml
in the working directory) and IDSCHOOL_* environment variables.

` + contracts.GetFullVersionString() + "\n",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Configuration file to read from.")
	rc.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error).")

	rc.AddCommand(c.newFetchCommand())
	rc.AddCommand(c.newYearsCommand())
	rc.AddCommand(c.newCacheCommand())
	rc.AddCommand(c.newServeCommand())
	rc.AddCommand(c.newVersionCommand())

	rc.SetOut(c.stdout)
	rc.SetErr(c.stderr)
	return rc
}

func (c *cli) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	return cfg, nil
}

// openApp builds the application for one command. The caller must Close it.
func (c *cli) openApp(ctx context.Context) (*app.Application, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	opts := app.Options{Fetcher: c.fetcher}
	if cfg.Logging.Output == "console" {
		opts.Logger = infrastructure.NewLoggerTo(c.stderr, cfg.Logging.Level)
	}

	a, err := app.NewApplication(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return a, nil
}

// withApp runs fn against a freshly opened application and closes it after
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.Application) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := c.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	return fn(ctx, a)
}

func (c *cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(c.stdout, contracts.GetFullVersionString())
			return err
		},
	}
}
