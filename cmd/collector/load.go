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
	loadIndicators []string
	loadSeriesDir  string
	loadStore      storeFlags
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Upsert previously fetched series files into the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(loadStore.apply, func(c *config.Config) {
			if loadSeriesDir != "" {
				c.SeriesDir = loadSeriesDir
			}
		})
		if err != nil {
			return err
		}
		if cfg.SeriesDir == "" {
			return errors.New("series directory is required")
		}
		indicators, err := cfg.Select(loadIndicators)
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		runner := newRunner(cfg, logger, metrics.New(), cmd.OutOrStdout())
		runner.SeriesDir = cfg.SeriesDir
		attachStore(runner, st, cfg, logger)
		return summaryErr(runner.Load(ctx, indicators))
	},
}

func init() {
	loadCmd.Flags().StringSliceVar(&loadIndicators, "indicator", nil, "indicators to load (default: all)")
	loadCmd.Flags().StringVar(&loadSeriesDir, "series-dir", "", "directory holding series files (default from config)")
	loadStore.register(loadCmd)
	rootCmd.AddCommand(loadCmd)
}
