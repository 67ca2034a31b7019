package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"idschooldata/internal/app"
	"idschooldata/internal/dataprocessing"
	"idschooldata/internal/exporter"
	"idschooldata/internal/services"
	"idschooldata/pkg/contracts/domain"
)

type fetchFlags struct {
	year    int
	years   []int
	tidy    bool
	noCache bool
	refresh bool
	out     string
	format  string
}

func (c *cli) newFetchCommand() *cobra.Command {
	var f fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch enrollment for one or more school years.",
		Long: `
Fetches the enrollment table for the given end years (2024 is the 2023-24
school year) and writes it to --out, or to stdout when --out is empty.

The output file format follows the extension: .csv, .parquet or .json.
Stdout output uses --format.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				return c.runFetch(ctx, a, f)
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&f.year, "year", "y", 0, "End year to fetch, e.g. 2024 for 2023-24.")
	flags.IntSliceVar(&f.years, "years", nil, "Comma separated end years, fetched and concatenated in order.")
	flags.BoolVar(&f.tidy, "tidy", false, "Return the tidy (long) shape instead of wide.")
	flags.BoolVar(&f.noCache, "no-cache", false, "Neither read nor write the cache.")
	flags.BoolVar(&f.refresh, "refresh", false, "Rebuild from source and overwrite the cache entry.")
	flags.StringVarP(&f.out, "out", "o", "", "File to write - default stdout.")
	flags.StringVarP(&f.format, "format", "f", string(exporter.FormatCSV), "Stdout format: csv, json or parquet.")
	cmd.MarkFlagsMutuallyExclusive("year", "years")
	cmd.MarkFlagsOneRequired("year", "years")

	return cmd
}

func (c *cli) runFetch(ctx context.Context, a *app.Application, f fetchFlags) error {
	opts := services.FetchOptions{
		Tidy:         f.tidy,
		UseCache:     !f.noCache,
		ForceRefresh: f.refresh,
	}

	var (
		table *domain.EnrollmentTable
		err   error
	)
	if len(f.years) > 0 {
		table, err = a.Enrollment.FetchEnrMulti(ctx, f.years, opts)
	} else {
		table, err = a.Enrollment.FetchEnr(ctx, f.year, opts)
	}
	if err != nil {
		return err
	}

	for _, w := range table.Warnings {
		a.Logger.WarnContext(ctx, "enrollment warning", slog.String("warning", w))
	}

	if f.out == "" {
		return a.Exporter.Write(c.stdout, table, exporter.Format(f.format))
	}
	if err := a.Exporter.ExportFile(ctx, table, f.out); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.stderr, "wrote %d rows to %s\n", table.Len(), f.out)
	return err
}

func (c *cli) newYearsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "years",
		Short: "List the end years the source publishes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				years := a.Enrollment.AvailableYears().Years()
				if len(years) == 0 {
					return errors.New("no years configured")
				}
				for _, y := range years {
					if _, err := fmt.Fprintf(c.stdout, "%d\t%s\n", y, dataprocessing.YearLabel(y)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
