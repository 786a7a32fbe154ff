package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/sites"
)

// statusCmd creates the "status" subcommand.
func statusCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "status [province]",
		Short: "Show cache coverage and recent loads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				site, ok := a.client.Site(args[0])
				if !ok {
					return fmt.Errorf("unknown province %q", args[0])
				}
				runs, err := a.client.Runs(ctx, site.Name, history)
				if err != nil {
					return err
				}
				fmt.Printf("%-20s %-24s %6s %6s %6s  %s\n", "STARTED", "WINDOW", "FETCH", "ADDED", "TOTAL", "ERROR")
				for _, r := range runs {
					fmt.Printf("%-20s %-24s %6d %6d %6d  %s\n",
						r.StartedAt.Local().Format(time.DateTime), r.Window.String(), r.Fetched, r.Added, r.Total, r.Error)
				}
				return nil
			}

			fmt.Printf("%-24s %8s  %-24s  %s\n", "PROVINCE", "CACHED", "DATES", "LAST LOAD")
			last := map[string]string{}
			if runs, err := a.client.LatestRuns(ctx); err == nil {
				for _, r := range runs {
					last[r.Province] = r.FinishedAt.Local().Format(time.DateTime)
				}
			}
			for _, name := range a.client.Provinces() {
				t, err := a.client.Cached(name)
				if err != nil {
					fmt.Printf("%-24s %8s  %-24s  %s\n", name, "-", "-", orDash(last[name]))
					continue
				}
				fmt.Printf("%-24s %8d  %-24s  %s\n", name, len(t), dateRange(t), orDash(last[name]))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&history, "history", "n", 10, "number of runs shown for one province")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// provincesCmd creates the "provinces" subcommand.
func provincesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provinces",
		Short: "List the supported provinces and how each newsroom is paged",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			catalog, err := sites.Default()
			if cfg.Scrape.SitesFile != "" {
				catalog, err = sites.LoadFile(cfg.Scrape.SitesFile)
			}
			if err != nil {
				return err
			}

			for _, s := range catalog.Sites() {
				fmt.Printf("%-24s %-7s %-8s %s\n", s.Name, s.Pagination.Style, s.Render, s.Pagination.URL)
			}
			return nil
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pressgoat %s\n", config.Version)
		},
	}
}
