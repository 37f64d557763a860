/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/log"

	"github.com/cardkit/cardkit/internal/ratelimit"
)

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	err := config.NewDefaultLoader("cardkit").LoadFromReader(bytes.NewReader(nil), config.DataTypeYAML, cfg)
	require.NoError(t, err)

	require.Equal(t, 100, cfg.Browser.MaxRendersPerProcess)
	require.Empty(t, cfg.Profile.ProviderURL, "provider URL has no default, it is required at wiring time")
	require.Equal(t, 10*time.Second, cfg.Render.CompletionTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.Render.SettleDelay)
	require.Equal(t, 7*24*time.Hour, cfg.Cache.ProfileTTL)
	require.Equal(t, time.Hour, cfg.Cache.ScreenshotTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Cache.AssetTTL)
	require.Equal(t, 24*time.Hour, cfg.CSRF.TokenTTL)
	require.Equal(t, ratelimit.Rate{Count: 300, Window: 5 * time.Minute}, cfg.RateLimitBroad.Rate())
	require.Equal(t, ratelimit.Rate{Count: 3, Window: 24 * time.Hour}, cfg.RateLimitNarrow.Rate())
}

func TestConfigFromYAML(t *testing.T) {
	cfgData := `
server:
  address: "127.0.0.1:8888"
metricsServer:
  address: "127.0.0.1:9999"
browser:
  maxRendersPerProcess: 50
  binPath: "/usr/bin/chromium"
  noSandbox: false
render:
  targetBaseURL: "http://127.0.0.1:8888"
  completionTimeout: 20s
  settleDelay: 250ms
cache:
  dbPath: "/tmp/cards.db"
  assetsDir: "/tmp/assets"
  profileTTL: 48h
  screenshotTTL: 30m
  assetTTL: 48h
  sweepInterval: 12h
profileProvider:
  url: "https://profiles.example.com"
  requestTimeout: 5s
  retryMax: 1
csrf:
  tokenTTL: 12h
  maxSessions: 500
rateLimit:
  broad:
    maxCount: 100
    window: 1m
  narrow:
    maxCount: 5
    window: 1h
`
	cfg := NewConfig()
	err := config.NewDefaultLoader("cardkit").LoadFromReader(
		bytes.NewReader([]byte(cfgData)), config.DataTypeYAML, cfg)
	require.NoError(t, err)

	require.Equal(t, "127.0.0.1:8888", cfg.Server.Address)
	require.Equal(t, "127.0.0.1:9999", cfg.MetricsServer.Address)
	require.Equal(t, 50, cfg.Browser.MaxRendersPerProcess)
	require.Equal(t, "/usr/bin/chromium", cfg.Browser.BinPath)
	require.False(t, cfg.Browser.NoSandbox)
	require.Equal(t, "http://127.0.0.1:8888", cfg.Render.TargetBaseURL)
	require.Equal(t, 20*time.Second, cfg.Render.CompletionTimeout)
	require.Equal(t, 250*time.Millisecond, cfg.Render.SettleDelay)
	require.Equal(t, "/tmp/cards.db", cfg.Cache.DBPath)
	require.Equal(t, 48*time.Hour, cfg.Cache.ProfileTTL)
	require.Equal(t, 30*time.Minute, cfg.Cache.ScreenshotTTL)
	require.Equal(t, 12*time.Hour, cfg.Cache.SweepInterval)
	require.Equal(t, "https://profiles.example.com", cfg.Profile.ProviderURL)
	require.Equal(t, 1, cfg.Profile.RetryMax)
	require.Equal(t, 12*time.Hour, cfg.CSRF.TokenTTL)
	require.Equal(t, 500, cfg.CSRF.MaxSessions)
	require.Equal(t, ratelimit.Rate{Count: 100, Window: time.Minute}, cfg.RateLimitBroad.Rate())
	require.Equal(t, ratelimit.Rate{Count: 5, Window: time.Hour}, cfg.RateLimitNarrow.Rate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfgData string
		errMsg  string
	}{
		{
			name: "non-positive render limit",
			cfgData: `
browser:
  maxRendersPerProcess: 0
`,
			errMsg: "maxRendersPerProcess",
		},
		{
			name: "empty target base URL",
			cfgData: `
render:
  targetBaseURL: ""
`,
			errMsg: "targetBaseURL",
		},
		{
			name: "non-positive rate window",
			cfgData: `
rateLimit:
  broad:
    window: 0s
`,
			errMsg: "window",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			err := config.NewDefaultLoader("cardkit").LoadFromReader(
				bytes.NewReader([]byte(tt.cfgData)), config.DataTypeYAML, cfg)
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestNewRequiresProviderURL(t *testing.T) {
	cfg := NewConfig()
	err := config.NewDefaultLoader("cardkit").LoadFromReader(bytes.NewReader(nil), config.DataTypeYAML, cfg)
	require.NoError(t, err)

	_, err = New(cfg, log.NewDisabledLogger())
	require.ErrorContains(t, err, "profileProvider.url")
}
