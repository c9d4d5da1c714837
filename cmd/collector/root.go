package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macrocollector/internal/config"
	"macrocollector/internal/logging"
	"macrocollector/internal/metrics"
	"macrocollector/internal/pipeline"
	"macrocollector/internal/store"
	"macrocollector/internal/store/postgres"
	"macrocollector/internal/store/sqlite"
)

var errIndicatorsFailed = errors.New("one or more indicators failed")

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Collect macroeconomic series into the local store",
	Long: `Fetches Brazilian and international macroeconomic series from public
statistical APIs, normalizes them into {reference_date, value} series and
upserts them into one table per indicator.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// storeFlags are the persistence overrides shared by run and load.
type storeFlags struct {
	driver    string
	dsn       string
	batchSize int
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.driver, "db-driver", "", "store driver: sqlite, postgres or none")
	cmd.Flags().StringVar(&f.dsn, "db", "", "sqlite path or postgres DSN")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "rows per upsert transaction")
}

func (f *storeFlags) apply(cfg *config.Config) {
	if f.driver != "" {
		cfg.Database.Driver = f.driver
	}
	if f.dsn != "" {
		cfg.Database.DSN = f.dsn
	}
	if f.batchSize > 0 {
		cfg.BatchSize = f.batchSize
	}
}

func loadConfig(apply ...func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	for _, fn := range apply {
		fn(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	return logging.FromEnv(verbose)
}

// openStore connects to the configured backend. Failing to connect is the
// only error that aborts a whole run.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverNone:
		return &store.NopStore{}, nil
	case config.DriverSQLite:
		return sqlite.New(cfg.Database.DSN)
	case config.DriverPostgres:
		return postgres.New(ctx, postgres.Config{
			DSN:            cfg.Database.DSN,
			ConnectTimeout: cfg.ConnectTimeout(),
		}, logger)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
}

func newRunner(cfg config.Config, logger *zap.Logger, m *metrics.Metrics, out io.Writer) *pipeline.Runner {
	return &pipeline.Runner{
		Providers: cfg.Providers(),
		Logger:    logger,
		Metrics:   m,
		Out:       out,
	}
}

func attachStore(runner *pipeline.Runner, st store.Store, cfg config.Config, logger *zap.Logger) {
	runner.Upserter = &store.Upserter{Store: st, BatchSize: cfg.BatchSize, Logger: logger}
}

func summaryErr(summary pipeline.Summary) error {
	if failed := summary.Failed(); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, report := range failed {
			names = append(names, report.Indicator)
		}
		return fmt.Errorf("%w: %s", errIndicatorsFailed, strings.Join(names, ", "))
	}
	return nil
}

func writeMetrics(m *metrics.Metrics, path string, logger *zap.Logger) {
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		logger.Warn("metrics textfile not written", zap.String("path", path), zap.Error(err))
	}
}
