package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = ""
		runIndicators = nil
		runSeriesDir = ""
		runStore = storeFlags{}
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestIndicatorsCmd(t *testing.T) {
	out, err := execute(t, "indicators")

	require.NoError(t, err)
	assert.Contains(t, out, "selic")
	assert.Contains(t, out, "/t/1620/n1/1/v/583/p/all")
	assert.Contains(t, out, "NY.GDP.MKTP.CD (BRA)")
}

func TestRunCmd_PartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "bcdata.sgs.433") {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"data":"02/01/2024","valor":"11.65"},{"data":"03/01/2024","valor":"11.65"}]`))
	}))
	defer server.Close()

	dir := t.TempDir()
	configFile := filepath.Join(dir, "collector.toml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
[sources.bcb]
base_url = "`+server.URL+`"

[[indicators]]
name = "selic"
source = "bcb"
series = "11"
format = "date"

[[indicators]]
name = "ipca"
source = "bcb"
series = "433"
format = "date"
`), 0o600))

	dbPath := filepath.Join(dir, "macro.db")
	seriesDir := filepath.Join(dir, "series")
	out, err := execute(t, "run", "--config", configFile, "--db-driver", "sqlite", "--db", dbPath, "--series-dir", seriesDir)

	assert.ErrorIs(t, err, errIndicatorsFailed)
	assert.Contains(t, out, "selic: fetched=2 skipped=0 duplicates=0 outside_window=0 kept=2")
	assert.Contains(t, out, "selic: stored rows=2 batches=1")
	assert.Contains(t, out, "ipca: failed at fetch")
	assert.Contains(t, out, "collector run complete (indicators=2 succeeded=1 failed=1)")
	assert.FileExists(t, dbPath)
	assert.FileExists(t, filepath.Join(seriesDir, "selic.json"))
	assert.NoFileExists(t, filepath.Join(seriesDir, "ipca.json"))
}

func TestRunCmd_SeriesDirFromConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"data":"02/01/2024","valor":"11.65"}]`))
	}))
	defer server.Close()

	dir := t.TempDir()
	seriesDir := filepath.Join(dir, "from-config")
	configFile := filepath.Join(dir, "collector.toml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
series_dir = "`+filepath.ToSlash(seriesDir)+`"

[sources.bcb]
base_url = "`+server.URL+`"

[[indicators]]
name = "selic"
source = "bcb"
series = "11"
format = "date"
`), 0o600))

	out, err := execute(t, "run", "--config", configFile, "--db-driver", "none")

	require.NoError(t, err)
	assert.Contains(t, out, "collector run complete (indicators=1 succeeded=1 failed=0)")
	assert.FileExists(t, filepath.Join(seriesDir, "selic.json"))
}

func TestRunCmd_UnknownIndicator(t *testing.T) {
	_, err := execute(t, "run", "--indicator", "pib_anual", "--db-driver", "none")

	assert.ErrorContains(t, err, "pib_anual")
}
