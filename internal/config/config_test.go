package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "reage.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 10.0, cfg.Server.RatePerSec, 0.001)
	assert.Equal(t, 20, cfg.Server.Burst)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrentFiles)
	assert.Equal(t, 50, cfg.Analysis.MinSegmentLength)
	assert.Equal(t, "unspecified", cfg.Analysis.DefaultBureau)
	assert.Empty(t, cfg.Rules.Disabled)
	assert.Empty(t, cfg.Rules.OverridesFile)

	for _, mode := range []string{"analyze", "store", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/reage
log:
  level: debug
  format: console
server:
  port: 9090
analysis:
  default_bureau: equifax
rules:
  disabled:
    - DOFD_MISSING
    - BALANCE_EXCEEDS_ORIGINAL
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/reage", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "equifax", cfg.Analysis.DefaultBureau)
	assert.Equal(t, []string{"DOFD_MISSING", "BALANCE_EXCEEDS_ORIGINAL"}, cfg.Rules.Disabled)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Analysis.MinSegmentLength)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("REAGE_STORE_DRIVER", "postgres")
	t.Setenv("REAGE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("REAGE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "reage.db"
	cfg.Log.Level = "info"
	cfg.Server.Port = 8080
	cfg.Server.RatePerSec = 10
	cfg.Server.Burst = 20
	cfg.Batch.MaxConcurrentFiles = 4
	cfg.Analysis.MinSegmentLength = 50
	cfg.Analysis.DefaultBureau = "unspecified"
	return cfg
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver must be sqlite or postgres, got "mysql"`)
	assert.Contains(t, err.Error(), "store.database_url is required")

	// analyze never touches the store
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 9090
	cfg.Server.Burst = 0
	err = cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.burst must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentFiles = 0
	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_files must be between 1 and 64")

	cfg.Batch.MaxConcurrentFiles = 65
	assert.Error(t, cfg.Validate("analyze"))

	cfg.Batch.MaxConcurrentFiles = 64
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateAnalysis(t *testing.T) {
	cfg := validDefaults()
	cfg.Analysis.DefaultBureau = "innovis"
	cfg.Analysis.MinSegmentLength = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate("analyze")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.default_bureau must be one of unspecified, experian, equifax, transunion")
	assert.Contains(t, err.Error(), "min_segment_length must be >= 0")
	assert.Contains(t, err.Error(), `log.level is invalid: "loud"`)
}

func TestValidBureau(t *testing.T) {
	for _, b := range Bureaus {
		assert.True(t, ValidBureau(b), b)
	}
	assert.False(t, ValidBureau("Experian"))
	assert.False(t, ValidBureau(""))
}
