/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package browser

import (
	"fmt"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "browser"

const (
	cfgKeyMaxRendersPerProcess = "maxRendersPerProcess"
	cfgKeyBinPath              = "binPath"
	cfgKeyNoSandbox            = "noSandbox"
)

const defaultMaxRendersPerProcess = 100

// Config represents a set of configuration parameters for the browser Manager.
type Config struct {
	// MaxRendersPerProcess is the number of renders after which the shared
	// process is closed and relaunched to keep its memory footprint bounded.
	MaxRendersPerProcess int `mapstructure:"maxRendersPerProcess" yaml:"maxRendersPerProcess" json:"maxRendersPerProcess"`

	// BinPath overrides browser binary discovery. Empty means auto-detect.
	BinPath string `mapstructure:"binPath" yaml:"binPath" json:"binPath"`

	// NoSandbox disables the browser sandbox. Needed in most containers.
	NoSandbox bool `mapstructure:"noSandbox" yaml:"noSandbox" json:"noSandbox"`

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
	return &Config{keyPrefix: cfgDefaultKeyPrefix, MaxRendersPerProcess: defaultMaxRendersPerProcess}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMaxRendersPerProcess, defaultMaxRendersPerProcess)
	dp.SetDefault(cfgKeyNoSandbox, true)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.MaxRendersPerProcess, err = dp.GetInt(cfgKeyMaxRendersPerProcess); err != nil {
		return err
	}
	if c.MaxRendersPerProcess <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxRendersPerProcess, fmt.Errorf("must be positive"))
	}
	if c.BinPath, err = dp.GetString(cfgKeyBinPath); err != nil {
		return err
	}
	if c.NoSandbox, err = dp.GetBool(cfgKeyNoSandbox); err != nil {
		return err
	}
	return nil
}
