// Package config holds the collector settings: where each indicator comes
// from, how it is read and where it is stored.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/pelletier/go-toml/v2"

	"macrocollector/internal/model"
	"macrocollector/internal/period"
	"macrocollector/internal/providers"
	"macrocollector/internal/store"
)

const (
	SourceBCB       = "bcb"
	SourceSIDRA     = "sidra"
	SourceWorldBank = "worldbank"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

type Config struct {
	SeriesDir  string         `toml:"series_dir"`
	BatchSize  int            `toml:"batch_size"`
	HTTP       HTTPConfig     `toml:"http"`
	Database   DatabaseConfig `toml:"database"`
	Sources    SourcesConfig  `toml:"sources"`
	Indicators []Indicator    `toml:"indicators"`
}

type HTTPConfig struct {
	TimeoutSeconds  int     `toml:"timeout_seconds"`
	UserAgent       string  `toml:"user_agent"`
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
	MaxBodyBytes    int64   `toml:"max_body_bytes"`
}

type DatabaseConfig struct {
	Driver                string `toml:"driver"`
	DSN                   string `toml:"dsn"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`
}

type SourcesConfig struct {
	BCB       SourceConfig `toml:"bcb"`
	SIDRA     SourceConfig `toml:"sidra"`
	WorldBank SourceConfig `toml:"worldbank"`
}

// SourceConfig overrides one upstream API. LookbackYears applies to bcb and
// PerPage to worldbank.
type SourceConfig struct {
	BaseURL       string `toml:"base_url"`
	LookbackYears int    `toml:"lookback_years"`
	PerPage       int    `toml:"per_page"`
}

// Indicator is one series to collect. Its Name doubles as the table name.
type Indicator struct {
	Name      string `toml:"name"`
	Source    string `toml:"source"`
	Series    string `toml:"series"`
	Path      string `toml:"path"`
	Country   string `toml:"country"`
	PeriodKey string `toml:"period_key"`
	ValueKey  string `toml:"value_key"`
	Format    string `toml:"format"`
	Class     string `toml:"class"`
	Start     string `toml:"start"`
	End       string `toml:"end"`
}

func Default() Config {
	return Config{
		SeriesDir: "data",
		BatchSize: store.DefaultBatchSize,
		HTTP: HTTPConfig{
			TimeoutSeconds: 60,
			UserAgent:      "macrocollector/0.1",
		},
		Database: DatabaseConfig{
			Driver:                DriverSQLite,
			DSN:                   "macro.db",
			ConnectTimeoutSeconds: 20,
		},
		Indicators: []Indicator{
			{Name: "selic", Source: SourceBCB, Series: "11", Format: "date", Class: "rate"},
			{Name: "ipca", Source: SourceBCB, Series: "433", Format: "date", Class: "rate"},
			{Name: "cambio_ptax_venda", Source: SourceBCB, Series: "1", Format: "date", Class: "rate"},
			{
				Name:   "desemprego",
				Source: SourceSIDRA,
				Path:   "/t/6381/n1/all/v/4099/p/all/d/v4099%201",
				Format: "month",
				Class:  "rate",
			},
			{
				Name:   "pib_trimestral",
				Source: SourceSIDRA,
				Path:   "/t/1620/n1/1/v/583/p/all/c11255/90707/d/v583%202",
				Format: "quarter",
				Class:  "monetary",
			},
			{
				Name:    "gdp_worldbank_usd",
				Source:  SourceWorldBank,
				Series:  "NY.GDP.MKTP.CD",
				Country: "BRA",
				Format:  "year",
				Class:   "monetary",
			},
		},
	}
}

// Load returns the defaults overlaid by the TOML file at path (when path is
// not empty) and then by MACRO_* environment variables. A file that lists
// indicators replaces the default set.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer file.Close()

	defaults := c.Indicators
	c.Indicators = nil
	decoder := toml.NewDecoder(file).DisallowUnknownFields()
	if err := decoder.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config: %s: %s", path, strict.String())
		}
		return fmt.Errorf("config: %s: %w", path, err)
	}
	if len(c.Indicators) == 0 {
		c.Indicators = defaults
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getenv("MACRO_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getenv("MACRO_DB_DSN", c.Database.DSN)
	c.BatchSize = getenvInt("MACRO_BATCH_SIZE", c.BatchSize)
	c.HTTP.TimeoutSeconds = getenvInt("MACRO_HTTP_TIMEOUT_SECONDS", c.HTTP.TimeoutSeconds)
	c.SeriesDir = getenv("MACRO_SERIES_DIR", c.SeriesDir)
	c.Sources.BCB.BaseURL = getenv("MACRO_BCB_BASE_URL", c.Sources.BCB.BaseURL)
	c.Sources.SIDRA.BaseURL = getenv("MACRO_SIDRA_BASE_URL", c.Sources.SIDRA.BaseURL)
	c.Sources.WorldBank.BaseURL = getenv("MACRO_WORLDBANK_BASE_URL", c.Sources.WorldBank.BaseURL)
}

func (c Config) Validate() error {
	var errs []error
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout_seconds must be positive, got %d", c.HTTP.TimeoutSeconds))
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	case DriverNone:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver: %q", c.Database.Driver))
	}

	seen := make(map[string]struct{}, len(c.Indicators))
	for _, indicator := range c.Indicators {
		if _, dup := seen[indicator.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate indicator: %s", indicator.Name))
			continue
		}
		seen[indicator.Name] = struct{}{}
		if err := indicator.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Select returns the named indicators in configuration order. No names
// selects every indicator.
func (c Config) Select(names []string) ([]Indicator, error) {
	if len(names) == 0 {
		return c.Indicators, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[strings.TrimSpace(name)] = true
	}

	selected := make([]Indicator, 0, len(names))
	for _, indicator := range c.Indicators {
		if wanted[indicator.Name] {
			selected = append(selected, indicator)
			delete(wanted, indicator.Name)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for name := range wanted {
			unknown = append(unknown, name)
		}
		return nil, fmt.Errorf("unknown indicator(s): %s", strings.Join(unknown, ", "))
	}
	return selected, nil
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func (c Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.ConnectTimeoutSeconds) * time.Second
}

func (i Indicator) Validate() error {
	if err := store.ValidateTableName(i.Name); err != nil {
		return fmt.Errorf("indicator %q: %w", i.Name, err)
	}
	switch i.Source {
	case SourceBCB, SourceWorldBank:
		if strings.TrimSpace(i.Series) == "" {
			return fmt.Errorf("indicator %s: series is required for source %s", i.Name, i.Source)
		}
	case SourceSIDRA:
		if strings.TrimSpace(i.Path) == "" {
			return fmt.Errorf("indicator %s: path is required for source sidra", i.Name)
		}
	default:
		return fmt.Errorf("indicator %s: unknown source %q", i.Name, i.Source)
	}
	if _, err := period.ParseFormat(i.Format); err != nil {
		return fmt.Errorf("indicator %s: %w", i.Name, err)
	}
	if _, err := model.ParseValueClass(i.Class); err != nil {
		return fmt.Errorf("indicator %s: %w", i.Name, err)
	}
	if _, err := i.Query(); err != nil {
		return fmt.Errorf("indicator %s: %w", i.Name, err)
	}
	return nil
}

// Query translates the indicator into adapter coordinates.
func (i Indicator) Query() (providers.Query, error) {
	start, err := parseDate(i.Start)
	if err != nil {
		return providers.Query{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseDate(i.End)
	if err != nil {
		return providers.Query{}, fmt.Errorf("end: %w", err)
	}
	q := providers.Query{
		Indicator: i.Name,
		Series:    i.Series,
		Path:      i.Path,
		Country:   i.Country,
		PeriodKey: i.PeriodKey,
		ValueKey:  i.ValueKey,
		Start:     start,
		End:       end,
	}
	if err := q.Validate(); err != nil {
		return providers.Query{}, err
	}
	return q, nil
}

// PeriodFormat and ValueClass assume a validated indicator.
func (i Indicator) PeriodFormat() period.Format {
	format, _ := period.ParseFormat(i.Format)
	return format
}

func (i Indicator) ValueClass() model.ValueClass {
	class, _ := model.ParseValueClass(i.Class)
	return class
}

func parseDate(value string) (civil.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(value)
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
