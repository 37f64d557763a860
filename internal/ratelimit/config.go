/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"
)

const (
	cfgKeyMaxCount      = "maxCount"
	cfgKeyWindow        = "window"
	cfgKeyMaxKeys       = "maxKeys"
	cfgKeySweepInterval = "sweepInterval"
)

const (
	defaultMaxKeys       = 10000
	defaultSweepInterval = time.Hour
)

// Config represents a set of configuration parameters for a single SlidingWindow instance.
type Config struct {
	MaxCount      int           `mapstructure:"maxCount" yaml:"maxCount" json:"maxCount"`
	Window        time.Duration `mapstructure:"window" yaml:"window" json:"window"`
	MaxKeys       int           `mapstructure:"maxKeys" yaml:"maxKeys" json:"maxKeys"`
	SweepInterval time.Duration `mapstructure:"sweepInterval" yaml:"sweepInterval" json:"sweepInterval"`

	keyPrefix       string
	defaultMaxCount int
	defaultWindow   time.Duration
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config with the provided key prefix and rate defaults.
// Two differently parameterized limiters coexist in the service, so the prefix is mandatory.
func NewConfig(keyPrefix string, defaultRate Rate) *Config {
	return &Config{keyPrefix: keyPrefix, defaultMaxCount: defaultRate.Count, defaultWindow: defaultRate.Window}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxCount, c.defaultMaxCount)
	dp.SetDefault(cfgKeyWindow, c.defaultWindow)
	dp.SetDefault(cfgKeyMaxKeys, defaultMaxKeys)
	dp.SetDefault(cfgKeySweepInterval, defaultSweepInterval)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxCount, err = dp.GetInt(cfgKeyMaxCount); err != nil {
		return err
	}
	if c.MaxCount <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxCount, fmt.Errorf("must be positive"))
	}
	if c.Window, err = dp.GetDuration(cfgKeyWindow); err != nil {
		return err
	}
	if c.Window <= 0 {
		return dp.WrapKeyErr(cfgKeyWindow, fmt.Errorf("must be positive"))
	}
	if c.MaxKeys, err = dp.GetInt(cfgKeyMaxKeys); err != nil {
		return err
	}
	if c.MaxKeys <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxKeys, fmt.Errorf("must be positive"))
	}
	if c.SweepInterval, err = dp.GetDuration(cfgKeySweepInterval); err != nil {
		return err
	}
	if c.SweepInterval <= 0 {
		return dp.WrapKeyErr(cfgKeySweepInterval, fmt.Errorf("must be positive"))
	}
	return nil
}

// Rate returns the configured rate.
func (c *Config) Rate() Rate {
	return Rate{Count: c.MaxCount, Window: c.Window}
}
