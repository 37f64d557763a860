/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package render

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"
)

const cfgDefaultKeyPrefix = "render"

const (
	cfgKeyTargetBaseURL     = "targetBaseURL"
	cfgKeyCompletionTimeout = "completionTimeout"
	cfgKeySettleDelay       = "settleDelay"
)

const (
	defaultTargetBaseURL     = "http://127.0.0.1:8080"
	defaultCompletionTimeout = 10 * time.Second
	defaultSettleDelay       = 500 * time.Millisecond
)

// Config represents a set of configuration parameters for the render Pipeline.
type Config struct {
	// TargetBaseURL is the address of this service as reachable from the
	// rendering process; the card markup is served under it.
	TargetBaseURL string `mapstructure:"targetBaseURL" yaml:"targetBaseURL" json:"targetBaseURL"`

	// CompletionTimeout bounds the wait for the page's render-completion signal.
	CompletionTimeout time.Duration `mapstructure:"completionTimeout" yaml:"completionTimeout" json:"completionTimeout"`

	// SettleDelay is the fixed delay after the completion signal that lets
	// asynchronous layout and fonts finish.
	SettleDelay time.Duration `mapstructure:"settleDelay" yaml:"settleDelay" json:"settleDelay"`

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
		keyPrefix:         cfgDefaultKeyPrefix,
		TargetBaseURL:     defaultTargetBaseURL,
		CompletionTimeout: defaultCompletionTimeout,
		SettleDelay:       defaultSettleDelay,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTargetBaseURL, defaultTargetBaseURL)
	dp.SetDefault(cfgKeyCompletionTimeout, defaultCompletionTimeout)
	dp.SetDefault(cfgKeySettleDelay, defaultSettleDelay)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.TargetBaseURL, err = dp.GetString(cfgKeyTargetBaseURL); err != nil {
		return err
	}
	if c.TargetBaseURL == "" {
		return dp.WrapKeyErr(cfgKeyTargetBaseURL, fmt.Errorf("must not be empty"))
	}
	if c.CompletionTimeout, err = dp.GetDuration(cfgKeyCompletionTimeout); err != nil {
		return err
	}
	if c.CompletionTimeout <= 0 {
		return dp.WrapKeyErr(cfgKeyCompletionTimeout, fmt.Errorf("must be positive"))
	}
	if c.SettleDelay, err = dp.GetDuration(cfgKeySettleDelay); err != nil {
		return err
	}
	if c.SettleDelay < 0 {
		return dp.WrapKeyErr(cfgKeySettleDelay, fmt.Errorf("must not be negative"))
	}
	return nil
}
