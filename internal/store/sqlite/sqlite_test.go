package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"macrocollector/internal/model"
	"macrocollector/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "macro.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func date(year int, month time.Month, day int) civil.Date {
	return civil.Date{Year: year, Month: month, Day: day}
}

func rateTable(name string) store.Table {
	return store.Table{Name: name, Precision: model.ClassRate.Precision()}
}

func TestStore_UpsertAndLoad(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	table := rateTable("selic")
	require.NoError(t, s.EnsureTable(ctx, table))

	observations := []model.Observation{
		{ReferenceDate: date(2023, time.March, 31), Value: 13.75},
		{ReferenceDate: date(2023, time.June, 30), Value: 13.75},
		{ReferenceDate: date(2023, time.September, 30), Value: 12.75},
	}
	affected, err := s.UpsertBatch(ctx, table, observations)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	loaded, err := s.LoadSeries(ctx, "selic")
	require.NoError(t, err)
	assert.Equal(t, "selic", loaded.Name)
	assert.Equal(t, observations, loaded.Observations)
}

func TestStore_UpsertIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	table := rateTable("ipca")
	require.NoError(t, s.EnsureTable(ctx, table))

	observations := []model.Observation{
		{ReferenceDate: date(2024, time.January, 31), Value: 0.42},
		{ReferenceDate: date(2024, time.February, 29), Value: 1000},
	}
	first, err := s.UpsertBatch(ctx, table, observations)
	require.NoError(t, err)
	assert.Equal(t, int64(2), first)

	second, err := s.UpsertBatch(ctx, table, observations)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second)

	loaded, err := s.LoadSeries(ctx, "ipca")
	require.NoError(t, err)
	assert.Equal(t, observations, loaded.Observations)
}

func TestStore_UpsertReplacesChangedValue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	table := rateTable("cambio")
	require.NoError(t, s.EnsureTable(ctx, table))

	_, err := s.UpsertBatch(ctx, table, []model.Observation{
		{ReferenceDate: date(2024, time.May, 2), Value: 5.1},
		{ReferenceDate: date(2024, time.May, 3), Value: 5.2},
	})
	require.NoError(t, err)

	affected, err := s.UpsertBatch(ctx, table, []model.Observation{
		{ReferenceDate: date(2024, time.May, 2), Value: 5.1},
		{ReferenceDate: date(2024, time.May, 3), Value: 5.25},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	loaded, err := s.LoadSeries(ctx, "cambio")
	require.NoError(t, err)
	require.Len(t, loaded.Observations, 2)
	assert.Equal(t, 5.25, loaded.Observations[1].Value)
}

func TestStore_UpsertThroughUpserter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	upserter := &store.Upserter{Store: s, BatchSize: 2, Logger: zap.NewNop()}

	series := model.Series{Name: "pib_trimestral", Observations: []model.Observation{
		{ReferenceDate: date(2022, time.December, 31), Value: 2544123.456},
		{ReferenceDate: date(2023, time.March, 31), Value: 2600000.001},
		{ReferenceDate: date(2023, time.June, 30), Value: 2651000},
	}}

	result, err := upserter.Upsert(ctx, "pib_trimestral", model.ClassMonetary, series)
	require.NoError(t, err)
	assert.Equal(t, store.Result{Rows: 3, Batches: 2}, result)

	result, err = upserter.Upsert(ctx, "pib_trimestral", model.ClassMonetary, series)
	require.NoError(t, err)
	assert.Equal(t, store.Result{Rows: 0, Batches: 2}, result)

	loaded, err := s.LoadSeries(ctx, "pib_trimestral")
	require.NoError(t, err)
	assert.Equal(t, 2544123.46, loaded.Observations[0].Value)
	assert.Equal(t, 2600000.0, loaded.Observations[1].Value)
}

func TestStore_TablesAreIsolated(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		require.NoError(t, s.EnsureTable(ctx, rateTable(name)))
	}

	_, err := s.UpsertBatch(ctx, rateTable("a"), []model.Observation{{ReferenceDate: date(2020, time.December, 31), Value: 1}})
	require.NoError(t, err)

	loaded, err := s.LoadSeries(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, loaded.Observations)
}

func TestStore_LoadSeriesMissingTable(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.LoadSeries(context.Background(), "unknown")

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_RejectsInvalidTableName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.EnsureTable(ctx, rateTable(`selic"; DROP TABLE x; --`))
	assert.ErrorIs(t, err, store.ErrInvalidTable)

	_, err = s.UpsertBatch(ctx, rateTable("Selic"), []model.Observation{{ReferenceDate: date(2020, time.January, 1), Value: 1}})
	assert.ErrorIs(t, err, store.ErrInvalidTable)
}

func TestStore_UpsertIntoMissingTableRollsBack(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.UpsertBatch(context.Background(), rateTable("missing"), []model.Observation{
		{ReferenceDate: date(2020, time.January, 1), Value: 1},
	})

	assert.Error(t, err)
}
