package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/pressgoat/pkg/pressgoat"
)

// cronLogger adapts slog to the cron logger interface.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// scheduleCmd creates the "schedule" subcommand.
func scheduleCmd() *cobra.Command {
	var (
		expr   string
		format string
		output string
		now    bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Refresh every province on a cron schedule",
		Long: `Schedule runs the equivalent of "pressgoat all" on the schedule.cron
expression until interrupted. A run that is still going when the next one is
due causes the next one to be skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if expr == "" {
				expr = a.cfg.Schedule.Cron
			}
			if output == "" {
				output = a.cfg.Storage.CorpusFile
			}
			logger := a.logger.With("component", "scheduler")
			cl := cronLogger{logger: logger}

			refresh := func() {
				start := time.Now()
				corpus, err := a.client.LoadAll(ctx, pressgoat.LoadOptions{Persist: true, Verbose: verbose})
				if err != nil {
					logger.Warn("refresh interrupted", "error", err)
					return
				}
				if err := a.client.Export(ctx, corpus, format, output); err != nil {
					logger.Error("corpus export failed", "error", err)
					return
				}
				logger.Info("refresh complete",
					"articles", len(corpus),
					"elapsed", time.Since(start).Round(time.Millisecond),
					"output", output,
				)
			}

			c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
			id, err := c.AddFunc(expr, refresh)
			if err != nil {
				return fmt.Errorf("invalid schedule %q: %w", expr, err)
			}
			c.Start()
			logger.Info("scheduler started", "cron", expr, "next", c.Entry(id).Schedule.Next(time.Now()))

			if now {
				go c.Entry(id).WrappedJob.Run()
			}

			<-ctx.Done()
			logger.Info("stopping scheduler")
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (default: schedule.cron)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "corpus output format: csv, jsonl")
	cmd.Flags().StringVarP(&output, "output", "o", "", "corpus output file (default: storage.corpus_file)")
	cmd.Flags().BoolVar(&now, "now", false, "run one refresh immediately")
	return cmd
}
