package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/pressgoat/internal/config"
	"github.com/IshaanNene/pressgoat/internal/observability"
	"github.com/IshaanNene/pressgoat/pkg/pressgoat"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pressgoat",
		Short: "Canadian provincial press release scraper",
		Long: `pressgoat collects press releases from the thirteen Canadian provincial
and territorial government newsrooms into one normalized corpus.

Each province is cached in its own CSV file. Loads only fetch the dates the
cache does not cover yet and merge the fresh rows in, newest first.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging and progress output")

	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(allCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(provincesCmd())
	rootCmd.AddCommand(termsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *pressgoat.Client
}

// setup loads the config, builds the logger and opens a client. Metrics are
// served until ctx is done when enabled.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	var opts []pressgoat.Option
	opts = append(opts, pressgoat.WithLogger(logger))
	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		if err := metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
		opts = append(opts, pressgoat.WithMetrics(metrics))
	}

	client, err := pressgoat.Open(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, client: client}, nil
}

func (a *app) Close() {
	if err := a.client.Close(); err != nil {
		a.logger.Warn("close failed", "error", err)
	}
}

// setupLogger creates a structured logger.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// windowFlags are the date flags shared by the load commands.
type windowFlags struct {
	start     string
	end       string
	noPersist bool
}

func (f *windowFlags) register(cmd *cobra.Command, persist bool) {
	cmd.Flags().StringVar(&f.start, "start", "", "earliest date to cover, YYYY-MM-DD (default: scrape.default_start)")
	cmd.Flags().StringVar(&f.end, "end", "", "latest date to cover, YYYY-MM-DD, inclusive (default: now)")
	if persist {
		cmd.Flags().BoolVar(&f.noPersist, "no-persist", false, "do not overwrite the province caches")
	}
}

// options converts the flags into load options. --end covers the whole day.
func (f *windowFlags) options() (pressgoat.LoadOptions, error) {
	opts := pressgoat.LoadOptions{Persist: !f.noPersist, Verbose: verbose}
	if f.start != "" {
		start, err := config.ParseDate(f.start)
		if err != nil {
			return opts, err
		}
		opts.Start = &start
	}
	if f.end != "" {
		end, err := config.ParseDate(f.end)
		if err != nil {
			return opts, err
		}
		opts.End = endOfDay(end)
	}
	return opts, nil
}

// endOfDay returns the last instant of t's day when t is a bare date.
func endOfDay(t time.Time) time.Time {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return t
	}
	return t.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// window resolves the flags against the configured default start.
func (f *windowFlags) window(cfg *config.Config) (pressgoat.Window, error) {
	opts, err := f.options()
	if err != nil {
		return pressgoat.Window{}, err
	}
	w := pressgoat.Window{Start: cfg.Scrape.DefaultStart, End: opts.End}
	if opts.Start != nil {
		w.Start = *opts.Start
	}
	if w.End.IsZero() {
		w.End = time.Now().UTC()
	}
	return w, nil
}

func dateRange(t pressgoat.Table) string {
	oldest, ok := t.MinDate()
	if !ok {
		return "-"
	}
	newest, _ := t.MaxDate()
	return oldest.Format(time.DateOnly) + " .. " + newest.Format(time.DateOnly)
}
