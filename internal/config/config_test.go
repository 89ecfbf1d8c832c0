package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
data:
  tickers: [AAPL, MSFT]
  start_date: 2020-01-01
  end_date: 2021-01-01
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Data.Tickers)
	assert.Equal(t, "2020-01-01", cfg.Data.StartDate.String())
	assert.Equal(t, "data/raw", cfg.Data.RawPath)
	assert.Equal(t, []int{1, 5, 21}, cfg.Features.Horizons)
	assert.Equal(t, []int{5, 20, 50, 200}, cfg.Features.Windows)
	assert.Equal(t, 14, cfg.Features.RSIPeriod)
	assert.Equal(t, "yahoo", cfg.Source.Provider)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
features:
  horizons: [2]
  sma_windows: [3, 7]
  rsi_period: 9
source:
  timeout: 5s
`))
	require.NoError(t, err)
	assert.Equal(t, []int{2}, cfg.Features.Horizons)
	assert.Equal(t, []int{3, 7}, cfg.Features.Windows)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)

	p := cfg.FeatureParams()
	assert.Equal(t, 9, p.RSIPeriod)
	p.Windows[0] = 100
	assert.Equal(t, 3, cfg.Features.Windows[0])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no tickers", "data:\n  start_date: 2020-01-01\n  end_date: 2021-01-01\n"},
		{"duplicate windows", minimalYAML + "features:\n  sma_windows: [5, 5]\n"},
		{"zero horizon", minimalYAML + "features:\n  horizons: [0]\n"},
		{"end before start", "data:\n  tickers: [A]\n  start_date: 2021-01-01\n  end_date: 2020-01-01\n"},
		{"bad date", "data:\n  tickers: [A]\n  start_date: 01/01/2020\n  end_date: 2021-01-01\n"},
		{"missing dates", "data:\n  tickers: [A]\n"},
		{"rest without url", minimalYAML + "source:\n  provider: rest\n"},
		{"unknown provider", minimalYAML + "source:\n  provider: bloomberg\n"},
		{"malformed yaml", "data: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("QUANT_TICKERS", "SPY, QQQ ,")
	t.Setenv("QUANT_END_DATE", "2022-06-30")
	t.Setenv("SQLITE_PATH", "/tmp/q.db")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Data.Tickers)
	assert.Equal(t, "2022-06-30", cfg.Data.EndDate.String())
	assert.Equal(t, "/tmp/q.db", cfg.Database.SQLitePath)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_RepoDefault(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "default.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Data.Tickers)
	assert.True(t, cfg.Features.Record)
}
