package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"feedcal/internal/agenda"
	"feedcal/internal/config"
	"feedcal/internal/ics"
	appLog "feedcal/internal/log"
	"feedcal/internal/metrics"
	"feedcal/internal/refresh"
	"feedcal/internal/web"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
	listen     string
)

var rootCmd = &cobra.Command{
	Use:   "feedcal",
	Short: "Merge ICS calendar feeds into one agenda",
	Long: `feedcal fetches several ICS subscriptions concurrently, expands
recurring events, and produces one windowed, sorted, day-grouped agenda
together with a per-source status report.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single aggregation and print the result as JSON",
	RunE:  runOnce,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Refresh on a schedule and serve the latest agenda over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/feedcal/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, error); overrides config")
	serveCmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")

	rootCmd.AddCommand(onceCmd, serveCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("feedcal version %s\n", version))
}

func main() {
	defer appLog.Sync()
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("feedcal failed", err)
		appLog.Sync()
		os.Exit(1)
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	res, err := newAggregator(conf, nil).FetchAll(ctx, conf.Sources(), buildOptions(conf))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runServe(cmd *cobra.Command, _ []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if listen != "" {
		conf.Listen = listen
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	m := metrics.New()
	refresher := refresh.New(newAggregator(conf, m), conf.Sources(), buildOptions(conf), conf.Location())
	if err := refresher.Start(ctx, conf.RefreshCron); err != nil {
		return err
	}

	srv := web.NewServer(conf, refresher, m.Handler())
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	// Give the scheduler a moment to log its shutdown.
	time.Sleep(100 * time.Millisecond)
	appLog.Info("feedcal exiting")
	return nil
}

func loadConfig() (*config.Config, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	level := conf.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if level != "" {
		lvl, err := appLog.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		appLog.SetLevel(lvl)
	}

	appLog.Info("effective config",
		"config_path", configPath,
		"listen", conf.Listen,
		"timezone", conf.Location().String(),
		"refresh", conf.RefreshCron,
		"timeout", conf.Timeout().String(),
		"calendars", len(conf.Calendars),
		"end_offset_days", conf.Window.EndOffsetDays,
		"max_entries", conf.Window.MaxEntries,
	)
	return conf, nil
}

func newAggregator(conf *config.Config, recorder agenda.Recorder) *agenda.Aggregator {
	var fetchOpts []ics.FetcherOption
	if conf.UserAgent != "" {
		fetchOpts = append(fetchOpts, ics.WithUserAgent(conf.UserAgent))
	}

	aggOpts := []agenda.Option{agenda.WithLocation(conf.Location())}
	if recorder != nil {
		aggOpts = append(aggOpts, agenda.WithRecorder(recorder))
	}
	return agenda.New(ics.NewFetcher(fetchOpts...), aggOpts...)
}

// buildOptions maps the config file's window section onto run options.
func buildOptions(conf *config.Config) agenda.Options {
	opts := agenda.DefaultOptions()
	opts.StartOffsetDays = conf.Window.StartOffsetDays
	opts.EndOffsetDays = conf.Window.EndOffsetDays
	opts.MaxEntries = conf.Window.MaxEntries
	opts.PerSourceTimeout = conf.Timeout()
	opts.IncludeRecentPastTimed = conf.Window.IncludeRecentPast
	opts.RecentPast = time.Duration(conf.Window.RecentPastMinutes) * time.Minute
	return opts
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
