/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"time"

	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/httpserver"
	"github.com/acronis/go-appkit/log"

	"github.com/cardkit/cardkit/internal/browser"
	"github.com/cardkit/cardkit/internal/cache"
	"github.com/cardkit/cardkit/internal/csrftoken"
	"github.com/cardkit/cardkit/internal/profile"
	"github.com/cardkit/cardkit/internal/ratelimit"
	"github.com/cardkit/cardkit/internal/render"
)

// Default rates of the two limiter instances. The broad one is a cheap guard
// for all traffic; the narrow one protects the expensive external profile fetch.
var (
	defaultBroadRate  = ratelimit.Rate{Count: 300, Window: 5 * time.Minute}
	defaultNarrowRate = ratelimit.Rate{Count: 3, Window: 24 * time.Hour}
)

// Config is the aggregated configuration of the whole service.
type Config struct {
	Server          *httpserver.Config
	MetricsServer   *httpserver.Config
	Log             *log.Config
	Browser         *browser.Config
	Render          *render.Config
	Cache           *cache.Config
	Profile         *profile.Config
	CSRF            *csrftoken.Config
	RateLimitBroad  *ratelimit.Config
	RateLimitNarrow *ratelimit.Config
}

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return &Config{
		Server:          httpserver.NewConfig(),
		MetricsServer:   httpserver.NewConfig(httpserver.WithKeyPrefix("metricsServer")),
		Log:             log.NewConfig(),
		Browser:         browser.NewConfig(),
		Render:          render.NewConfig(),
		Cache:           cache.NewConfig(),
		Profile:         profile.NewConfig(),
		CSRF:            csrftoken.NewConfig(),
		RateLimitBroad:  ratelimit.NewConfig("rateLimit.broad", defaultBroadRate),
		RateLimitNarrow: ratelimit.NewConfig("rateLimit.narrow", defaultNarrowRate),
	}
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}
