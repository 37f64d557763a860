/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cache

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "cache"

const (
	cfgKeyDBPath        = "dbPath"
	cfgKeyAssetsDir     = "assetsDir"
	cfgKeyProfileTTL    = "profileTTL"
	cfgKeyScreenshotTTL = "screenshotTTL"
	cfgKeyAssetTTL      = "assetTTL"
	cfgKeySweepInterval = "sweepInterval"
)

const (
	defaultDBPath        = "cardkit-cache.db"
	defaultAssetsDir     = "assets"
	defaultProfileTTL    = 7 * 24 * time.Hour
	defaultScreenshotTTL = time.Hour
	defaultAssetTTL      = 7 * 24 * time.Hour
	defaultSweepInterval = 24 * time.Hour
)

// Config represents a set of configuration parameters for all three cache tiers.
type Config struct {
	DBPath        string        `mapstructure:"dbPath" yaml:"dbPath" json:"dbPath"`
	AssetsDir     string        `mapstructure:"assetsDir" yaml:"assetsDir" json:"assetsDir"`
	ProfileTTL    time.Duration `mapstructure:"profileTTL" yaml:"profileTTL" json:"profileTTL"`
	ScreenshotTTL time.Duration `mapstructure:"screenshotTTL" yaml:"screenshotTTL" json:"screenshotTTL"`
	AssetTTL      time.Duration `mapstructure:"assetTTL" yaml:"assetTTL" json:"assetTTL"`

	// SweepInterval is the period of the durable/disk tier pruning sweeps.
	SweepInterval time.Duration `mapstructure:"sweepInterval" yaml:"sweepInterval" json:"sweepInterval"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{keyPrefix: cfgDefaultKeyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		keyPrefix:     cfgDefaultKeyPrefix,
		DBPath:        defaultDBPath,
		AssetsDir:     defaultAssetsDir,
		ProfileTTL:    defaultProfileTTL,
		ScreenshotTTL: defaultScreenshotTTL,
		AssetTTL:      defaultAssetTTL,
		SweepInterval: defaultSweepInterval,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyDBPath, defaultDBPath)
	dp.SetDefault(cfgKeyAssetsDir, defaultAssetsDir)
	dp.SetDefault(cfgKeyProfileTTL, defaultProfileTTL)
	dp.SetDefault(cfgKeyScreenshotTTL, defaultScreenshotTTL)
	dp.SetDefault(cfgKeyAssetTTL, defaultAssetTTL)
	dp.SetDefault(cfgKeySweepInterval, defaultSweepInterval)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.DBPath, err = dp.GetString(cfgKeyDBPath); err != nil {
		return err
	}
	if c.DBPath == "" {
		return dp.WrapKeyErr(cfgKeyDBPath, fmt.Errorf("must not be empty"))
	}
	if c.AssetsDir, err = dp.GetString(cfgKeyAssetsDir); err != nil {
		return err
	}
	if c.AssetsDir == "" {
		return dp.WrapKeyErr(cfgKeyAssetsDir, fmt.Errorf("must not be empty"))
	}
	for _, key := range []string{cfgKeyProfileTTL, cfgKeyScreenshotTTL, cfgKeyAssetTTL, cfgKeySweepInterval} {
		var d time.Duration
		if d, err = dp.GetDuration(key); err != nil {
			return err
		}
		if d <= 0 {
			return dp.WrapKeyErr(key, fmt.Errorf("must be positive"))
		}
		switch key {
		case cfgKeyProfileTTL:
			c.ProfileTTL = d
		case cfgKeyScreenshotTTL:
			c.ScreenshotTTL = d
		case cfgKeyAssetTTL:
			c.AssetTTL = d
		case cfgKeySweepInterval:
			c.SweepInterval = d
		}
	}
	return nil
}
