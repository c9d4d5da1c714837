package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macrocollector/internal/config"
	"macrocollector/internal/metrics"
	"macrocollector/internal/pipeline"
)

var (
	runIndicators  []string
	runSeriesDir   string
	runMetricsFile string
	runStore       storeFlags
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, clean and store every configured indicator",
	Long: `Runs the full pipeline once. Each indicator is fetched, cleaned and
upserted independently; a failing indicator does not stop the others, but
the command exits non-zero when any indicator failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(runStore.apply, func(c *config.Config) {
			if runSeriesDir != "" {
				c.SeriesDir = runSeriesDir
			}
		})
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		m := metrics.New()
		summary, err := collect(ctx, cmd, cfg, logger, m, runIndicators)
		writeMetrics(m, runMetricsFile, logger)
		if err != nil {
			return err
		}
		return summaryErr(summary)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runIndicators, "indicator", nil, "indicators to run (default: all)")
	runCmd.Flags().StringVar(&runSeriesDir, "series-dir", "", "directory for series files (default from config)")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	runStore.register(runCmd)
	rootCmd.AddCommand(runCmd)
}

// collect performs one full run against a freshly opened store. Cleaned
// series are also written under cfg.SeriesDir when it is set.
func collect(ctx context.Context, cmd *cobra.Command, cfg config.Config, logger *zap.Logger, m *metrics.Metrics, names []string) (pipeline.Summary, error) {
	indicators, err := cfg.Select(names)
	if err != nil {
		return pipeline.Summary{}, err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer st.Close()

	runner := newRunner(cfg, logger, m, cmd.OutOrStdout())
	runner.SeriesDir = cfg.SeriesDir
	attachStore(runner, st, cfg, logger)
	return runner.Run(ctx, indicators), nil
}
