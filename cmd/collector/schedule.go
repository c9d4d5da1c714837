package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macrocollector/internal/metrics"
)

var (
	scheduleSpec        string
	scheduleIndicators  []string
	scheduleMetricsFile string
	scheduleStore       storeFlags
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline on a cron schedule until interrupted",
	Long: `Runs the full pipeline every time the cron spec fires. The spec has a
leading seconds field. A run that is still going when the next one is due
causes that tick to be skipped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(scheduleStore.apply)
		if err != nil {
			return err
		}
		if _, err := cfg.Select(scheduleIndicators); err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
		scheduler := cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		)

		m := metrics.New()
		_, err = scheduler.AddFunc(scheduleSpec, func() {
			summary, err := collect(ctx, cmd, cfg, logger, m, scheduleIndicators)
			writeMetrics(m, scheduleMetricsFile, logger)
			if err != nil {
				logger.Error("scheduled run aborted", zap.Error(err))
				return
			}
			if err := summaryErr(summary); err != nil {
				logger.Warn("scheduled run finished with failures", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}

		scheduler.Start()
		logger.Info("scheduler started", zap.String("spec", scheduleSpec))
		<-ctx.Done()
		<-scheduler.Stop().Done()
		logger.Info("scheduler stopped")
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleSpec, "cron", "0 0 6 * * *", "cron spec with seconds field")
	scheduleCmd.Flags().StringSliceVar(&scheduleIndicators, "indicator", nil, "indicators to run (default: all)")
	scheduleCmd.Flags().StringVar(&scheduleMetricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after each run")
	scheduleStore.register(scheduleCmd)
	rootCmd.AddCommand(scheduleCmd)
}
