package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrocollector/internal/config"
	"macrocollector/internal/model"
	"macrocollector/internal/seriesfile"
	"macrocollector/internal/store"
	"macrocollector/internal/store/sqlite"
)

func TestBuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := sqlite.New(filepath.Join(dir, "macro.db"))
	require.NoError(t, err)
	defer st.Close()

	observations := []model.Observation{
		{ReferenceDate: civil.Date{Year: 2021, Month: time.December, Day: 31}, Value: 1.6},
		{ReferenceDate: civil.Date{Year: 2023, Month: time.December, Day: 31}, Value: 2.2},
	}
	upserter := &store.Upserter{Store: st}
	_, err = upserter.Upsert(ctx, "gdp_growth", model.ClassRate, model.Series{Name: "gdp_growth", Observations: observations})
	require.NoError(t, err)

	outDir := filepath.Join(dir, "site", "data")
	var out bytes.Buffer
	now := time.Date(2024, time.July, 1, 12, 0, 0, 0, time.UTC)
	indicators := []config.Indicator{{Name: "gdp_growth"}, {Name: "selic"}}

	meta, err := build(ctx, st, indicators, outDir, now, &out)
	require.NoError(t, err)

	assert.Equal(t, metaFile{
		GeneratedAt: "2024-07-01T12:00:00Z",
		Indicators: []indicatorMeta{
			{Name: "gdp_growth", Count: 2, First: "2021-12-31", Last: "2023-12-31"},
			{Name: "selic"},
		},
	}, meta)

	exported, err := seriesfile.Read(seriesfile.Path(outDir, "gdp_growth"), "gdp_growth")
	require.NoError(t, err)
	assert.Equal(t, observations, exported.Observations)

	content, err := os.ReadFile(filepath.Join(outDir, "meta.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"generated_at": "2024-07-01T12:00:00Z",
		"indicators": [
			{"name": "gdp_growth", "count": 2, "first": "2021-12-31", "last": "2023-12-31"},
			{"name": "selic", "count": 0}
		]
	}`, string(content))
	assert.Contains(t, out.String(), "selic: not in store")
}
