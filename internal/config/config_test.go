package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrocollector/internal/model"
	"macrocollector/internal/period"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collector.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	names := make([]string, 0, len(cfg.Indicators))
	for _, indicator := range cfg.Indicators {
		names = append(names, indicator.Name)
	}
	assert.Equal(t, []string{"selic", "ipca", "cambio_ptax_venda", "desemprego", "pib_trimestral", "gdp_worldbank_usd"}, names)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
batch_size = 50

[database]
driver = "postgres"
dsn = "postgres://macro@localhost/macro"

[sources.worldbank]
per_page = 500

[[indicators]]
name = "selic"
source = "bcb"
series = "11"
format = "date"
start = "2020-01-01"
end = "2020-12-31"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 20, cfg.Database.ConnectTimeoutSeconds)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 500, cfg.Sources.WorldBank.PerPage)
	require.Len(t, cfg.Indicators, 1)

	q, err := cfg.Indicators[0].Query()
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2020, Month: time.January, Day: 1}, q.Start)
	assert.Equal(t, civil.Date{Year: 2020, Month: time.December, Day: 31}, q.End)
	assert.Equal(t, period.FormatDate, cfg.Indicators[0].PeriodFormat())
	assert.Equal(t, model.ClassRate, cfg.Indicators[0].ValueClass())
}

func TestLoad_FileWithoutIndicatorsKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "series_dir = \"/tmp/series\"\n")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/series", cfg.SeriesDir)
	assert.Len(t, cfg.Indicators, len(Default().Indicators))
}

func TestLoad_UnknownKey(t *testing.T) {
	path := writeConfig(t, "batch_sise = 10\n")

	_, err := Load(path)

	assert.ErrorContains(t, err, "batch_sise")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MACRO_DB_DRIVER", "none")
	t.Setenv("MACRO_BATCH_SIZE", "25")
	t.Setenv("MACRO_HTTP_TIMEOUT_SECONDS", "5")
	t.Setenv("MACRO_SERIES_DIR", "out")
	t.Setenv("MACRO_BCB_BASE_URL", "http://localhost:8080/sgs")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, DriverNone, cfg.Database.Driver)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, "out", cfg.SeriesDir)
	assert.Equal(t, "http://localhost:8080/sgs", cfg.Sources.BCB.BaseURL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database driver"},
		{"dsn", func(c *Config) { c.Database.DSN = "" }, "dsn is required"},
		{"duplicate", func(c *Config) { c.Indicators = append(c.Indicators, c.Indicators[0]) }, "duplicate indicator: selic"},
		{"name", func(c *Config) { c.Indicators[0].Name = "Selic Rate" }, "invalid table name"},
		{"source", func(c *Config) { c.Indicators[0].Source = "ipea" }, "unknown source"},
		{"series", func(c *Config) { c.Indicators[0].Series = "" }, "series is required"},
		{"path", func(c *Config) { c.Indicators[3].Path = "" }, "path is required"},
		{"format", func(c *Config) { c.Indicators[0].Format = "weekly" }, "unknown period format"},
		{"class", func(c *Config) { c.Indicators[0].Class = "currency" }, "unknown value class"},
		{"date", func(c *Config) { c.Indicators[0].Start = "01/01/2020" }, "start"},
		{"range", func(c *Config) {
			c.Indicators[0].Start = "2021-01-01"
			c.Indicators[0].End = "2020-01-01"
		}, "is after end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestSelect(t *testing.T) {
	cfg := Default()

	all, err := cfg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, len(cfg.Indicators))

	selected, err := cfg.Select([]string{"gdp_worldbank_usd", " selic"})
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "selic", selected[0].Name)
	assert.Equal(t, "gdp_worldbank_usd", selected[1].Name)

	_, err = cfg.Select([]string{"selic", "pib_anual"})
	assert.ErrorContains(t, err, "pib_anual")
}

func TestProviders(t *testing.T) {
	registry := Default().Providers()

	for _, indicator := range Default().Indicators {
		provider, ok := registry[indicator.Source]
		require.True(t, ok, indicator.Source)
		assert.Equal(t, indicator.Source, provider.Name())
	}
}
