/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package profile

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "profileProvider"

const (
	cfgKeyURL            = "url"
	cfgKeyRequestTimeout = "requestTimeout"
	cfgKeyRetryMax       = "retryMax"
	cfgKeyMaxAssetSize   = "maxAssetSize"
)

const (
	defaultRequestTimeout = 15 * time.Second
	defaultRetryMax       = 2
	defaultMaxAssetSize   = int64(5 << 20) // 5 MiB
)

// Config represents a set of configuration parameters for the profile Fetcher.
type Config struct {
	ProviderURL    string        `mapstructure:"url" yaml:"url" json:"url"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
	RetryMax       int           `mapstructure:"retryMax" yaml:"retryMax" json:"retryMax"`
	MaxAssetSize   int64         `mapstructure:"maxAssetSize" yaml:"maxAssetSize" json:"maxAssetSize"`

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
		keyPrefix:      cfgDefaultKeyPrefix,
		RequestTimeout: defaultRequestTimeout,
		RetryMax:       defaultRetryMax,
		MaxAssetSize:   defaultMaxAssetSize,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRequestTimeout, defaultRequestTimeout)
	dp.SetDefault(cfgKeyRetryMax, defaultRetryMax)
	dp.SetDefault(cfgKeyMaxAssetSize, defaultMaxAssetSize)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	// An empty URL is accepted here so that configs without a provider section
	// still load; the application rejects it at construction time.
	if c.ProviderURL, err = dp.GetString(cfgKeyURL); err != nil {
		return err
	}
	if c.RequestTimeout, err = dp.GetDuration(cfgKeyRequestTimeout); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 {
		return dp.WrapKeyErr(cfgKeyRequestTimeout, fmt.Errorf("must be positive"))
	}
	if c.RetryMax, err = dp.GetInt(cfgKeyRetryMax); err != nil {
		return err
	}
	if c.RetryMax < 0 {
		return dp.WrapKeyErr(cfgKeyRetryMax, fmt.Errorf("must not be negative"))
	}
	var size int
	if size, err = dp.GetInt(cfgKeyMaxAssetSize); err != nil {
		return err
	}
	if size <= 0 {
		return dp.WrapKeyErr(cfgKeyMaxAssetSize, fmt.Errorf("must be positive"))
	}
	c.MaxAssetSize = int64(size)
	return nil
}
