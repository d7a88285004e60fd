package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecast/internal/errs"
	"pricecast/internal/forecast"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pricecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultNeedsOnlyASymbol(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Contains(t, err.Error(), "symbol")

	cfg.Data.Symbol = "AAPL"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	t.Setenv("PRICECAST_DATA_SYMBOL", "MSFT")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "MSFT", cfg.Data.Symbol)
	assert.Equal(t, 10, cfg.Model.SequenceLength)
	assert.Equal(t, 30, cfg.Model.HorizonDays)
	assert.Equal(t, string(forecast.ModeRepeated), cfg.Model.Mode)
	assert.Equal(t, "out", cfg.Report.OutDir)
	assert.Equal(t, 365, cfg.Report.DisplayWindowDays)
	assert.True(t, cfg.Seasonal.Weekly)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
data:
  symbol: AAPL
  lookback_years: 2
model:
  sequence_length: 20
  mode: autoregressive
seasonal:
  yearly: true
report:
  display_window_days: 90
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", cfg.Data.Symbol)
	assert.Equal(t, 2, cfg.Data.LookbackYears)
	assert.Equal(t, 20, cfg.Model.SequenceLength)
	assert.Equal(t, "autoregressive", cfg.Model.Mode)
	assert.True(t, cfg.Seasonal.Yearly)
	assert.Equal(t, 90, cfg.Report.DisplayWindowDays)

	// Untouched sections keep their defaults.
	assert.Equal(t, 32, cfg.Model.BatchSize)
	assert.Equal(t, 0.8, cfg.Model.TrainFraction)
	assert.Equal(t, "cache", cfg.Data.CacheDir)
}

func TestLoadEnvironmentOverridesYAML(t *testing.T) {
	path := writeConfigFile(t, `
data:
  symbol: AAPL
model:
  sequence_length: 20
`)
	t.Setenv("PRICECAST_DATA_SYMBOL", "NVDA")
	t.Setenv("PRICECAST_MODEL_SEQUENCE_LENGTH", "15")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "NVDA", cfg.Data.Symbol)
	assert.Equal(t, 15, cfg.Model.SequenceLength)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name: "lowercase symbol",
			content: `
data:
  symbol: aapl
`,
			field: "symbol",
		},
		{
			name: "unknown mode",
			content: `
data:
  symbol: AAPL
model:
  mode: chaotic
`,
			field: "mode",
		},
		{
			name: "train fraction out of range",
			content: `
data:
  symbol: AAPL
model:
  train_fraction: 1.5
`,
			field: "train_fraction",
		},
		{
			name: "zero horizon",
			content: `
data:
  symbol: AAPL
model:
  horizon_days: 0
`,
			field: "horizon_days",
		},
		{
			name: "interval width too large",
			content: `
data:
  symbol: AAPL
seasonal:
  interval_width: 2
`,
			field: "interval_width",
		},
		{
			name: "bad log level",
			content: `
data:
  symbol: AAPL
logging:
  level: shout
`,
			field: "level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := Default()
	cfg.Model.TrainFraction = 2

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
	assert.Contains(t, err.Error(), "train_fraction")
}

func TestLoadFileSkipsValidation(t *testing.T) {
	// No symbol anywhere: Load refuses, LoadFile leaves the decision to
	// the caller so flags can fill the gap.
	_, err := Load("")
	require.Error(t, err)

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Data.Symbol)

	cfg.Data.Symbol = "AAPL"
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")

	_, err = Load(writeConfigFile(t, "model: [not, a, mapping]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestConfigBridges(t *testing.T) {
	cfg := Default()
	cfg.Data.Symbol = "AAPL"

	driver := cfg.DriverConfig()
	assert.Equal(t, 10, driver.SequenceLength)
	assert.Equal(t, 30, driver.HorizonDays)
	assert.Equal(t, 0.8, driver.TrainFraction)
	assert.Equal(t, forecast.ModeRepeated, driver.Mode)
	assert.NoError(t, driver.Validate())

	hp := cfg.Hyperparameters()
	assert.Equal(t, 60, hp.Epochs)
	assert.Equal(t, int64(42), hp.Seed)
	assert.NoError(t, hp.Validate())

	seasonal := cfg.SeasonalOptions()
	assert.True(t, seasonal.Weekly)
	assert.False(t, seasonal.Yearly)
	assert.Equal(t, 0.8, seasonal.IntervalWidth)

	assert.Equal(t, 24*time.Hour, cfg.CacheTTL())
	cfg.Data.CacheTTLHours = 0
	assert.Equal(t, time.Duration(0), cfg.CacheTTL())
}
