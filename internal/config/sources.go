package config

import (
	"macrocollector/internal/providers"
	"macrocollector/internal/providers/bcb"
	"macrocollector/internal/providers/sidra"
	"macrocollector/internal/providers/worldbank"
)

func (c Config) clientConfig() providers.ClientConfig {
	return providers.ClientConfig{
		Timeout:         c.HTTPTimeout(),
		UserAgent:       c.HTTP.UserAgent,
		RateLimitPerSec: c.HTTP.RateLimitPerSec,
		MaxBodyBytes:    c.HTTP.MaxBodyBytes,
	}
}

// Providers builds one adapter per source, keyed by Indicator.Source.
func (c Config) Providers() map[string]providers.Provider {
	client := c.clientConfig()
	return map[string]providers.Provider{
		SourceBCB: bcb.New(bcb.Config{
			BaseURL:       c.Sources.BCB.BaseURL,
			LookbackYears: c.Sources.BCB.LookbackYears,
			Client:        client,
		}),
		SourceSIDRA: sidra.New(sidra.Config{
			BaseURL: c.Sources.SIDRA.BaseURL,
			Client:  client,
		}),
		SourceWorldBank: worldbank.New(worldbank.Config{
			BaseURL: c.Sources.WorldBank.BaseURL,
			PerPage: c.Sources.WorldBank.PerPage,
			Client:  client,
		}),
	}
}
