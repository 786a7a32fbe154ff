package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/pressgoat/internal/storage"
	"github.com/IshaanNene/pressgoat/pkg/pressgoat"
)

// loadCmd creates the "load" subcommand.
func loadCmd() *cobra.Command {
	var wf windowFlags
	cmd := &cobra.Command{
		Use:   "load <province>...",
		Short: "Extend and return the cached tables of provinces",
		Long: `Load reads the cache of each province, fetches the dates it does not
cover yet and writes the merged table back. With no arguments every province
is loaded.`,
		Example: `  pressgoat load ontario "nova scotia" --start 2021-01-01
  pressgoat load pei --end 2021-06-30 --no-persist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := wf.options()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			names := args
			if len(names) == 0 {
				names = a.client.Provinces()
			}

			start := time.Now()
			tables, err := a.client.LoadEach(ctx, names, opts)
			if err != nil {
				return err
			}

			fmt.Printf("\n%-24s %8s  %s\n", "PROVINCE", "ROWS", "DATES")
			for _, name := range names {
				t := tables[name]
				if t == nil {
					fmt.Printf("%-24s %8s  unknown province\n", name, "-")
					continue
				}
				fmt.Printf("%-24s %8d  %s\n", name, len(t), dateRange(t))
			}
			fmt.Printf("\nLoaded in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	wf.register(cmd, true)
	return cmd
}

// fetchCmd creates the "fetch" subcommand.
func fetchCmd() *cobra.Command {
	var (
		wf     windowFlags
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "fetch <province>",
		Short: "Fetch a province over a window without touching its cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := wf.window(a.cfg)
			if err != nil {
				return err
			}
			t, err := a.client.FetchProvince(ctx, args[0], w, verbose)
			if err != nil {
				return err
			}

			if output == "" {
				return storage.WriteTable(os.Stdout, t)
			}
			if err := a.client.Export(ctx, t, format, output); err != nil {
				return err
			}
			fmt.Printf("Fetched %d articles (%s) into %s\n", len(t), w.String(), output)
			return nil
		},
	}
	wf.register(cmd, false)
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, jsonl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: CSV on stdout)")
	return cmd
}

// allCmd creates the "all" subcommand.
func allCmd() *cobra.Command {
	var (
		wf     windowFlags
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Load every province and write the combined corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := wf.options()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			corpus, err := a.client.LoadAll(ctx, opts)
			if err != nil {
				return err
			}

			if output == "" {
				output = a.cfg.Storage.CorpusFile
			}
			if err := a.client.Export(ctx, corpus, format, output); err != nil {
				return fmt.Errorf("export corpus: %w", err)
			}

			fmt.Printf("\nCorpus complete in %s\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("   Articles:  %d\n", len(corpus))
			fmt.Printf("   Dates:     %s\n", dateRange(corpus))
			fmt.Printf("   Output:    %s\n", output)
			return nil
		},
	}
	wf.register(cmd, true)
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, jsonl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: storage.corpus_file)")
	return cmd
}

// exportCmd creates the "export" subcommand.
func exportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export [province]...",
		Short: "Write the cached tables to a file, and MongoDB when enabled, without fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			names := args
			if len(names) == 0 {
				names = a.client.Provinces()
			}
			var corpus pressgoat.Table
			for _, name := range names {
				t, err := a.client.Cached(name)
				if err != nil {
					a.logger.Warn("skipping province", "province", name, "error", err)
					continue
				}
				corpus = append(corpus, t...)
			}

			if output == "" {
				output = a.cfg.Storage.CorpusFile
				if format != "csv" {
					output = strings.TrimSuffix(output, ".csv") + "." + format
				}
			}
			if err := a.client.Export(ctx, corpus, format, output); err != nil {
				return err
			}
			fmt.Printf("Exported %d articles to %s\n", len(corpus), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, jsonl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: storage.corpus_file)")
	return cmd
}
