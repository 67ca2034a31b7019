package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"idschooldata/internal/app"
	"idschooldata/pkg/contracts/domain"
)

func (c *cli) newCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached enrollment tables.",
	}
	cacheCmd.AddCommand(c.newCacheStatusCommand())
	cacheCmd.AddCommand(c.newCacheClearCommand())
	return cacheCmd
}

func (c *cli) newCacheStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List cache entries as shape and end year.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				keys, err := a.Enrollment.CacheStatus(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "backend: %s\n", a.Config.Cache.Backend)
				for _, k := range keys {
					fmt.Fprintf(c.stdout, "%s\t%d\n", k.Shape, k.EndYear)
				}
				_, err = fmt.Fprintf(c.stdout, "%d entries\n", len(keys))
				return err
			})
		},
	}
}

func (c *cli) newCacheClearCommand() *cobra.Command {
	var (
		year  int
		shape string
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries.",
		Long: `
Removes cache entries. Without flags every entry is removed; --year and
--shape narrow the selection and may be combined.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				endYear *int
				sh      *domain.Shape
			)
			if cmd.Flags().Changed("year") {
				endYear = &year
			}
			if cmd.Flags().Changed("shape") {
				s := domain.Shape(shape)
				sh = &s
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				removed, err := a.Enrollment.ClearCache(ctx, endYear, sh)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(c.stdout, "removed %d entries\n", len(removed))
				return err
			})
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Only remove entries for this end year.")
	cmd.Flags().StringVarP(&shape, "shape", "s", "", "Only remove entries of this shape: wide or tidy.")
	return cmd
}

func (c *cli) newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the enrollment HTTP API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				if cmd.Flags().Changed("port") {
					a.Config.Server.Port = port
					a.Server.Addr = net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(port))
				}
				return a.Run(ctx)
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override the configured listen port.")
	return cmd
}
