package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"macrocollector/internal/model"
)

const DefaultBatchSize = 100

// Upserter writes cleaned series into a Store in fixed-size batches.
type Upserter struct {
	Store     Store
	BatchSize int
	Logger    *zap.Logger
}

// Result summarizes one indicator write.
type Result struct {
	Rows    int64
	Batches int
}

// Upsert writes s into the table named after indicator. It stops at the first
// failing batch and returns a *PersistError along with what earlier batches
// committed. Values are rounded to the column precision of class before they
// are sent; a value that cannot fit fails the batch that holds it.
func (u *Upserter) Upsert(ctx context.Context, indicator string, class model.ValueClass, s model.Series) (Result, error) {
	logger := u.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batchSize := u.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	table := Table{Name: indicator, Precision: class.Precision()}
	if err := table.Validate(); err != nil {
		return Result{}, &PersistError{Indicator: indicator, Err: err}
	}
	if err := u.Store.EnsureTable(ctx, table); err != nil {
		return Result{}, &PersistError{Indicator: indicator, Err: fmt.Errorf("ensure table: %w", err)}
	}

	var result Result
	for start := 0; start < len(s.Observations); start += batchSize {
		end := min(start+batchSize, len(s.Observations))
		batch := result.Batches + 1

		fitted, err := fit(table.Precision, s.Observations[start:end])
		if err != nil {
			return result, &PersistError{Indicator: indicator, Batch: batch, Err: err}
		}

		rows, err := u.Store.UpsertBatch(ctx, table, fitted)
		if err != nil {
			logger.Warn("batch rolled back",
				zap.String("indicator", indicator),
				zap.Int("batch", batch),
				zap.Int("size", len(fitted)),
				zap.Error(err))
			return result, &PersistError{Indicator: indicator, Batch: batch, Err: err}
		}

		result.Rows += rows
		result.Batches = batch
		logger.Debug("batch committed",
			zap.String("indicator", indicator),
			zap.Int("batch", batch),
			zap.Int64("rows", rows))
	}
	return result, nil
}

func fit(precision model.Precision, observations []model.Observation) ([]model.Observation, error) {
	fitted := make([]model.Observation, len(observations))
	for i, observation := range observations {
		value, err := precision.Fit(observation.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", observation.ReferenceDate, err)
		}
		rounded, _ := value.Float64()
		fitted[i] = model.Observation{ReferenceDate: observation.ReferenceDate, Value: rounded}
	}
	return fitted, nil
}
