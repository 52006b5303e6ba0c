package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

func validConfig() Config {
	return Config{
		HTTPPort:       8080,
		BaseURL:        "https://data.binance.vision/",
		OutputDir:      "./data",
		StateFile:      "./state/runs.json",
		DefaultStart:   "2020-01-01",
		MaxWorkers:     10,
		MaxRetries:     3,
		BackoffBase:    time.Second,
		MaxBackoff:     30 * time.Second,
		AttemptTimeout: time.Minute,
		MaxFileSize:    1024,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "zero workers", mutate: func(c *Config) { c.MaxWorkers = 0 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: true},
		{name: "zero retries allowed", mutate: func(c *Config) { c.MaxRetries = 0 }},
		{name: "bad port", mutate: func(c *Config) { c.HTTPPort = 70000 }, wantErr: true},
		{name: "backoff cap below base", mutate: func(c *Config) { c.MaxBackoff = time.Millisecond }, wantErr: true},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "data.binance.vision" }, wantErr: true},
		{name: "bad default start", mutate: func(c *Config) { c.DefaultStart = "2020/01/01" }, wantErr: true},
		{name: "empty output dir", mutate: func(c *Config) { c.OutputDir = "" }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimit = -1 }, wantErr: true},
		{name: "rate without burst", mutate: func(c *Config) { c.RateLimit, c.RateBurst = 5, 0 }, wantErr: true},
		{name: "rate with burst", mutate: func(c *Config) { c.RateLimit, c.RateBurst = 5, 1 }},
		{name: "burst ignored without rate", mutate: func(c *Config) { c.RateLimit, c.RateBurst = 0, 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("VD_OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("VD_STATE_FILE", filepath.Join(dir, "state", "runs.json"))
	t.Setenv("VD_MAX_WORKERS", "4")
	t.Setenv("VD_BACKOFF_BASE", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffBase)
	assert.Equal(t, "https://data.binance.vision/", cfg.BaseURL)
	assert.DirExists(t, filepath.Join(dir, "out"))
	assert.DirExists(t, filepath.Join(dir, "state"))
	assert.Equal(t, 2020, cfg.DefaultStartDate().Year())
}

func TestLoad_InvalidWorkers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VD_MAX_WORKERS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RateLimitWithoutBurst(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VD_RATE_LIMIT", "5")
	t.Setenv("VD_RATE_BURST", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "rate burst")
}

func TestConfig_TempHorizon(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 4*(time.Minute+30*time.Second), cfg.TempHorizon())

	cfg.MaxRetries, cfg.AttemptTimeout, cfg.MaxBackoff = 0, time.Second, 0
	assert.Equal(t, time.Minute, cfg.TempHorizon())
}

func TestSetupLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestLoadSelection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btc.yaml")
	content := `market: um
data_types: [klines, fundingRate]
symbols: [BTCUSDT, ETHUSDT]
intervals: [1h]
granularity: monthly
years: [2024]
months: [1, 2]
options:
  verify_checksum: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profile, err := LoadSelection(path)
	require.NoError(t, err)

	assert.Equal(t, domain.MarketUM, profile.Market)
	assert.Equal(t, []string{"klines", "fundingRate"}, profile.DataTypes)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, profile.Symbols)
	assert.Equal(t, domain.GranularityMonthly, profile.Granularity)
	assert.Equal(t, []int{2024}, profile.Years)
	assert.Equal(t, []int{1, 2}, profile.Months)
	assert.True(t, profile.Options.VerifyChecksum)
	assert.False(t, profile.Options.Force)
}

func TestLoadSelection_Missing(t *testing.T) {
	_, err := LoadSelection(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, errpkg.ErrConfigNotFound)
}
