package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "condengine", cfg.ServiceName)
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce)
	assert.True(t, cfg.UseWorker)
	assert.Equal(t, 2, cfg.LookbackMargin)
	assert.Equal(t, "@every 5m", cfg.ResyncCron)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Symbols)
	assert.Equal(t, "redis", cfg.FeedSource)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "btcusdt, ethusdt ,")
	t.Setenv("DEBOUNCE", "250ms")
	t.Setenv("USE_WORKER", "false")
	t.Setenv("BACKFILL_SOURCE", "SQLITE")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.False(t, cfg.UseWorker)
	assert.Equal(t, "sqlite", cfg.BackfillSource)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "condengine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STRATEGY_ID: s-42\nINTERVAL: 5m\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s-42", cfg.StrategyID)
	assert.Equal(t, "5m", cfg.Interval)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFromViper_Invalid(t *testing.T) {
	cases := map[string]map[string]any{
		"feed source":      {"FEED_SOURCE": "kafka"},
		"ws without url":   {"FEED_SOURCE": "ws"},
		"negative margin":  {"LOOKBACK_MARGIN": -1},
		"no symbols":       {"SYMBOLS": " , "},
		"bad webhook":      {"WEBHOOK_URL": "not a url"},
		"unknown loglevel": {"LOG_LEVEL": "loud"},
		"telegram no chat": {"TELEGRAM_BOT_TOKEN": "t"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			defaults(v)
			for k, val := range overrides {
				v.Set(k, val)
			}
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}
