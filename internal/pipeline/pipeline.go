// Package pipeline drives indicators through fetch, clean, file and store.
// Indicators run one after another and a failure only abandons the
// indicator it belongs to.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"macrocollector/internal/config"
	"macrocollector/internal/metrics"
	"macrocollector/internal/model"
	"macrocollector/internal/period"
	"macrocollector/internal/providers"
	"macrocollector/internal/series"
	"macrocollector/internal/seriesfile"
	"macrocollector/internal/store"
)

type Stage string

const (
	StageFetch  Stage = "fetch"
	StageRead   Stage = "read"
	StageWrite  Stage = "write"
	StageUpsert Stage = "upsert"
)

// Report is the outcome of one indicator. Stage and Err are set only when the
// indicator failed.
type Report struct {
	Indicator  string
	Fetched    int
	Skipped    int
	Duplicates int
	Cleaned    int
	// OutsideWindow counts clean observations dropped by the start/end bounds.
	OutsideWindow int
	Written       int64
	Batches       int
	Stage         Stage
	Err           error
}

func (r Report) Failed() bool {
	return r.Err != nil
}

type Summary struct {
	RunID   string
	Reports []Report
}

func (s Summary) Failed() []Report {
	var failed []Report
	for _, report := range s.Reports {
		if report.Failed() {
			failed = append(failed, report)
		}
	}
	return failed
}

func (s Summary) Succeeded() int {
	return len(s.Reports) - len(s.Failed())
}

// Runner holds the collaborators of a run. A nil Upserter skips persistence
// and an empty SeriesDir skips intermediate files.
type Runner struct {
	Providers map[string]providers.Provider
	Upserter  *store.Upserter
	SeriesDir string
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	Out       io.Writer
}

// Run fetches every indicator from its source.
func (r *Runner) Run(ctx context.Context, indicators []config.Indicator) Summary {
	return r.each(ctx, "collector", indicators, r.collect)
}

// Load reads every indicator from its intermediate file instead of fetching.
func (r *Runner) Load(ctx context.Context, indicators []config.Indicator) Summary {
	return r.each(ctx, "loader", indicators, r.load)
}

type step func(ctx context.Context, logger *zap.Logger, indicator config.Indicator) Report

func (r *Runner) each(ctx context.Context, mode string, indicators []config.Indicator, fn step) Summary {
	summary := Summary{RunID: uuid.NewString(), Reports: make([]Report, 0, len(indicators))}
	logger := r.logger().With(zap.String("run_id", summary.RunID), zap.String("mode", mode))
	logger.Info("run started", zap.Int("indicators", len(indicators)))

	for _, indicator := range indicators {
		var report Report
		if err := ctx.Err(); err != nil {
			report = Report{Indicator: indicator.Name, Stage: StageFetch, Err: err}
		} else {
			report = fn(ctx, logger.With(zap.String("indicator", indicator.Name)), indicator)
		}
		if report.Failed() {
			r.metrics().IncrementFailure(indicator.Name, string(report.Stage))
			r.printf("%s: failed at %s: %v\n", indicator.Name, report.Stage, report.Err)
			logger.Error("indicator failed",
				zap.String("indicator", indicator.Name),
				zap.String("stage", string(report.Stage)),
				zap.Error(report.Err))
		}
		summary.Reports = append(summary.Reports, report)
	}

	failed := len(summary.Failed())
	r.printf("%s run complete (indicators=%d succeeded=%d failed=%d)\n",
		mode, len(summary.Reports), summary.Succeeded(), failed)
	logger.Info("run finished", zap.Int("succeeded", summary.Succeeded()), zap.Int("failed", failed))
	return summary
}

func (r *Runner) collect(ctx context.Context, logger *zap.Logger, indicator config.Indicator) Report {
	report := Report{Indicator: indicator.Name}

	query, err := indicator.Query()
	if err != nil {
		return report.fail(StageFetch, err)
	}
	provider, ok := r.Providers[indicator.Source]
	if !ok {
		return report.fail(StageFetch, fmt.Errorf("no provider for source %q", indicator.Source))
	}

	started := time.Now()
	records, err := provider.Fetch(ctx, query)
	r.metrics().ObserveFetch(indicator.Name, started)
	if err != nil {
		return report.fail(StageFetch, err)
	}
	logger.Debug("fetched", zap.Int("records", len(records)), zap.Duration("elapsed", time.Since(started)))

	cleaned := r.clean(&report, indicator.Name, records, indicator.PeriodFormat())
	windowed := series.Window(cleaned, query.Start, query.End)
	report.OutsideWindow = cleaned.Len() - windowed.Len()
	report.Cleaned = windowed.Len()
	cleaned = windowed
	r.printf("%s: fetched=%d skipped=%d duplicates=%d outside_window=%d kept=%d\n",
		indicator.Name, report.Fetched, report.Skipped, report.Duplicates, report.OutsideWindow, report.Cleaned)

	if r.SeriesDir != "" {
		path := seriesfile.Path(r.SeriesDir, indicator.Name)
		if err := seriesfile.Write(path, cleaned); err != nil {
			return report.fail(StageWrite, err)
		}
		logger.Debug("series file written", zap.String("path", path))
	}

	return r.persist(ctx, report, indicator, cleaned)
}

func (r *Runner) load(ctx context.Context, logger *zap.Logger, indicator config.Indicator) Report {
	report := Report{Indicator: indicator.Name}

	path := seriesfile.Path(r.SeriesDir, indicator.Name)
	stored, err := seriesfile.Read(path, indicator.Name)
	if err != nil {
		return report.fail(StageRead, err)
	}
	logger.Debug("series file read", zap.String("path", path), zap.Int("observations", stored.Len()))

	cleaned := r.clean(&report, indicator.Name, series.Records(stored), period.FormatDate)
	report.Cleaned = cleaned.Len()
	r.printf("%s: loaded=%d skipped=%d duplicates=%d kept=%d\n",
		indicator.Name, report.Fetched, report.Skipped, report.Duplicates, report.Cleaned)

	return r.persist(ctx, report, indicator, cleaned)
}

func (r *Runner) clean(report *Report, name string, records []model.RawRecord, format period.Format) model.Series {
	cleaned, stats := series.Clean(name, records, format)
	report.Fetched = stats.Input
	report.Skipped = stats.Skipped()
	report.Duplicates = stats.Duplicates

	m := r.metrics()
	m.AddFetched(name, stats.Input)
	m.AddSkipped(name, "invalid_period", stats.InvalidPeriod)
	m.AddSkipped(name, "invalid_value", stats.InvalidValue)
	m.AddSkipped(name, "duplicate", stats.Duplicates)
	return cleaned
}

func (r *Runner) persist(ctx context.Context, report Report, indicator config.Indicator, cleaned model.Series) Report {
	if r.Upserter == nil {
		return report
	}
	result, err := r.Upserter.Upsert(ctx, indicator.Name, indicator.ValueClass(), cleaned)
	report.Written = result.Rows
	report.Batches = result.Batches
	r.metrics().AddUpserted(indicator.Name, result.Rows)
	if err != nil {
		return report.fail(StageUpsert, err)
	}
	r.printf("%s: stored rows=%d batches=%d\n", indicator.Name, result.Rows, result.Batches)
	return report
}

func (r Report) fail(stage Stage, err error) Report {
	r.Stage = stage
	r.Err = err
	return r
}

// printf writes a status line. A nil Out discards it.
func (r *Runner) printf(format string, args ...any) {
	out := r.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, format, args...)
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) metrics() *metrics.Metrics {
	if r.Metrics == nil {
		r.Metrics = metrics.New()
	}
	return r.Metrics
}
