package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "reddata-journal.db", cfg.Journal.Path)
	assert.Equal(t, 50000, cfg.Zensus.ChunkSize)
	assert.Equal(t, "utf-8", cfg.Zensus.Charset)
	assert.Equal(t, 100, cfg.Zensus.SampleSize)
	assert.Equal(t, 8, cfg.Stats.Concurrency)
	assert.Equal(t, 500, cfg.Stats.ChunkSize)
	assert.Equal(t, "100m", cfg.Stats.GridSize)
	assert.Equal(t, 2022, cfg.Stats.Year)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.NominatimURL)
	assert.Equal(t, "https://photon.komoot.io", cfg.Geocode.PhotonURL)
	assert.InDelta(t, 1.0, cfg.Geocode.RequestsPerSecond, 0.001)
	assert.Equal(t, 120, cfg.Fetch.TimeoutSecs)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  database_url: postgres://localhost/reddata
log:
  level: debug
  format: console
server:
  port: 9090
stats:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/reddata", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Stats.Concurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 50000, cfg.Zensus.ChunkSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
zensus:
  charset: latin1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("REDDATA_LOG_LEVEL", "warn")
	t.Setenv("REDDATA_ZENSUS_CHARSET", "windows-1252")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "windows-1252", cfg.Zensus.Charset)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("REDDATA_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.DatabaseURL = "postgres://localhost/reddata"
	cfg.Zensus.ChunkSize = 50000
	cfg.Zensus.SampleSize = 100
	cfg.Stats.Concurrency = 8
	cfg.Stats.ChunkSize = 500
	cfg.Stats.Year = 2022
	cfg.Geocode.RequestsPerSecond = 1.0
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateETL_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("etl"))
}

func TestValidateETL_MissingDB(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("etl")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateStats_ConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Stats.Concurrency = 0
	err := cfg.Validate("stats")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stats.concurrency must be between 1 and 64")

	cfg.Stats.Concurrency = 65
	err = cfg.Validate("stats")
	assert.Error(t, err)

	cfg.Stats.Concurrency = 64
	assert.NoError(t, cfg.Validate("stats"))
}

func TestValidateStats_YearBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Stats.Year = 0

	err := cfg.Validate("stats")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stats.year")
}

func TestValidateGeocode_RateBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.RequestsPerSecond = 0

	err := cfg.Validate("geocode")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "requests_per_second")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
