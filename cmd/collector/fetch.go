package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"macrocollector/internal/config"
	"macrocollector/internal/metrics"
)

var (
	fetchIndicators []string
	fetchSeriesDir  string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and clean indicators into series files without storing them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(func(c *config.Config) {
			if fetchSeriesDir != "" {
				c.SeriesDir = fetchSeriesDir
			}
		})
		if err != nil {
			return err
		}
		if cfg.SeriesDir == "" {
			return errors.New("series directory is required")
		}
		indicators, err := cfg.Select(fetchIndicators)
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		runner := newRunner(cfg, logger, metrics.New(), cmd.OutOrStdout())
		runner.SeriesDir = cfg.SeriesDir
		return summaryErr(runner.Run(ctx, indicators))
	},
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchIndicators, "indicator", nil, "indicators to fetch (default: all)")
	fetchCmd.Flags().StringVar(&fetchSeriesDir, "series-dir", "", "directory for series files (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
