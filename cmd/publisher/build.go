package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"macrocollector/internal/config"
	"macrocollector/internal/logging"
	"macrocollector/internal/seriesfile"
	"macrocollector/internal/store"
	"macrocollector/internal/store/postgres"
	"macrocollector/internal/store/sqlite"
)

type metaFile struct {
	GeneratedAt string          `json:"generated_at"`
	Indicators  []indicatorMeta `json:"indicators"`
}

type indicatorMeta struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	First string `json:"first,omitempty"`
	Last  string `json:"last,omitempty"`
}

var (
	configPath string
	outDir     string
	dbDriver   string
	dbDSN      string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "publisher",
	Short:        "Export stored indicator series for the dashboard",
	SilenceUsage: true,
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write one JSON file per indicator plus meta.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dbDriver != "" {
			cfg.Database.Driver = dbDriver
		}
		if dbDSN != "" {
			cfg.Database.DSN = dbDSN
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err := logging.FromEnv(verbose)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx := cmd.Context()
		st, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		meta, err := build(ctx, st, cfg.Indicators, outDir, time.Now().UTC(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		cmd.Printf("publisher build complete (out=%s indicators=%d)\n", outDir, len(meta.Indicators))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	buildCmd.Flags().StringVar(&outDir, "out", "site/data", "output directory")
	buildCmd.Flags().StringVar(&dbDriver, "db-driver", "", "store driver: sqlite or postgres")
	buildCmd.Flags().StringVar(&dbDSN, "db", "", "sqlite path or postgres DSN")
	rootCmd.AddCommand(buildCmd)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.Database.DSN)
	case config.DriverPostgres:
		return postgres.New(ctx, postgres.Config{DSN: cfg.Database.DSN, ConnectTimeout: cfg.ConnectTimeout()}, logger)
	default:
		return nil, fmt.Errorf("publisher needs a database, driver is %q", cfg.Database.Driver)
	}
}

// build exports every indicator found in the store. Indicators that were
// never collected are listed in meta.json with a zero count.
func build(ctx context.Context, st store.Store, indicators []config.Indicator, dir string, now time.Time, out io.Writer) (metaFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return metaFile{}, fmt.Errorf("create output dir: %w", err)
	}

	meta := metaFile{
		GeneratedAt: now.Format(time.RFC3339),
		Indicators:  make([]indicatorMeta, 0, len(indicators)),
	}
	for _, indicator := range indicators {
		series, err := st.LoadSeries(ctx, indicator.Name)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(out, "%s: not in store\n", indicator.Name)
			meta.Indicators = append(meta.Indicators, indicatorMeta{Name: indicator.Name})
			continue
		}
		if err != nil {
			return metaFile{}, fmt.Errorf("load %s: %w", indicator.Name, err)
		}

		if err := seriesfile.Write(seriesfile.Path(dir, indicator.Name), series); err != nil {
			return metaFile{}, err
		}

		entry := indicatorMeta{Name: indicator.Name, Count: series.Len()}
		if first, last, ok := series.Span(); ok {
			entry.First = first.String()
			entry.Last = last.String()
		}
		meta.Indicators = append(meta.Indicators, entry)
		fmt.Fprintf(out, "%s: exported observations=%d\n", indicator.Name, entry.Count)
	}

	if err := writeJSON(filepath.Join(dir, "meta.json"), meta); err != nil {
		return metaFile{}, fmt.Errorf("write meta.json: %w", err)
	}
	return meta, nil
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
