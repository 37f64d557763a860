/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package csrftoken

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "csrf"

const (
	cfgKeyTokenTTL      = "tokenTTL"
	cfgKeyMaxSessions   = "maxSessions"
	cfgKeySweepInterval = "sweepInterval"
)

const (
	defaultTokenTTL      = 24 * time.Hour
	defaultMaxSessions   = 10000
	defaultSweepInterval = time.Hour
)

// Config represents a set of configuration parameters for the token Store.
type Config struct {
	TokenTTL      time.Duration `mapstructure:"tokenTTL" yaml:"tokenTTL" json:"tokenTTL"`
	MaxSessions   int           `mapstructure:"maxSessions" yaml:"maxSessions" json:"maxSessions"`
	SweepInterval time.Duration `mapstructure:"sweepInterval" yaml:"sweepInterval" json:"sweepInterval"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{keyPrefix: cfgDefaultKeyPrefix}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTokenTTL, defaultTokenTTL)
	dp.SetDefault(cfgKeyMaxSessions, defaultMaxSessions)
	dp.SetDefault(cfgKeySweepInterval, defaultSweepInterval)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.TokenTTL, err = dp.GetDuration(cfgKeyTokenTTL); err != nil {
		return err
	}
	if c.TokenTTL <= 0 {
		return dp.WrapKeyErr(cfgKeyTokenTTL, fmt.Errorf("must be positive"))
	}
	if c.MaxSessions, err = dp.GetInt(cfgKeyMaxSessions); err != nil {
		return err
	}
	if c.MaxSessions <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxSessions, fmt.Errorf("must be positive"))
	}
	if c.SweepInterval, err = dp.GetDuration(cfgKeySweepInterval); err != nil {
		return err
	}
	if c.SweepInterval <= 0 {
		return dp.WrapKeyErr(cfgKeySweepInterval, fmt.Errorf("must be positive"))
	}
	return nil
}
