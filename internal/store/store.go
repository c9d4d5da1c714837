package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"macrocollector/internal/model"
)

// Store persists indicator series into one table per indicator. UpsertBatch
// runs in a single transaction: either every row of the batch is applied or
// none is.
type Store interface {
	EnsureTable(ctx context.Context, table Table) error
	UpsertBatch(ctx context.Context, table Table, observations []model.Observation) (int64, error)
	LoadSeries(ctx context.Context, name string) (model.Series, error)
	Close() error
}

// Table describes the destination of one indicator.
type Table struct {
	Name      string
	Precision model.Precision
}

var (
	ErrInvalidTable = errors.New("invalid table name")
	ErrNotFound     = errors.New("series not found")
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

func (t Table) Validate() error {
	if err := ValidateTableName(t.Name); err != nil {
		return err
	}
	if t.Precision.Digits <= 0 || t.Precision.Scale < 0 || t.Precision.Scale >= t.Precision.Digits {
		return fmt.Errorf("invalid precision %d,%d for table %s", t.Precision.Digits, t.Precision.Scale, t.Name)
	}
	return nil
}

// PersistError reports the batch that failed while writing an indicator.
// Batches before it are committed; the failed one was rolled back.
type PersistError struct {
	Indicator string
	Batch     int
	Err       error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: batch %d: %v", e.Indicator, e.Batch, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// NopStore accepts every write and stores nothing.
type NopStore struct{}

func (s *NopStore) EnsureTable(ctx context.Context, table Table) error {
	return table.Validate()
}

func (s *NopStore) UpsertBatch(ctx context.Context, table Table, observations []model.Observation) (int64, error) {
	return 0, nil
}

func (s *NopStore) LoadSeries(ctx context.Context, name string) (model.Series, error) {
	return model.Series{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (s *NopStore) Close() error {
	return nil
}

var _ Store = (*NopStore)(nil)
