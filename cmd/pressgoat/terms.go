package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/pressgoat/internal/textprep"
	"github.com/IshaanNene/pressgoat/pkg/pressgoat"
)

// termsCmd creates the "terms" subcommand.
func termsCmd() *cobra.Command {
	var (
		top   int
		extra []string
	)
	cmd := &cobra.Command{
		Use:   "terms [province]...",
		Short: "Print the most frequent terms of the cached corpus",
		Long: `Terms tokenizes the cached full texts with accents folded and prints the
most frequent terms. English stopwords, the place names found in the region
columns and the newsroom script notice are removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(context.Background())
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

			stop := textprep.Default().WithGeo(corpus).With(extra...)
			for i, tc := range textprep.TopTerms(corpus, stop, top) {
				fmt.Printf("%4d  %-20s %d\n", i+1, tc.Term, tc.Count)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 30, "number of terms to print")
	cmd.Flags().StringSliceVar(&extra, "stopword", nil, "additional stopwords")
	return cmd
}
