package ratelimit

import (
	"net/http"
	"time"

	"github.com/jonathan/keyword-miner/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends in "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// FromSettings builds a Config from the server.rate_limit section.
func FromSettings(s config.RateLimitSettings) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultPerMinute,
		DefaultWindow:   time.Minute,
		CleanupInterval: s.CleanupInterval,
		Whitelist:       toSet(s.Whitelist),
		Blacklist:       toSet(s.Blacklist),
		EndpointConfigs: DefaultEndpointConfigs(s.KeywordsPerMinute, s.KeywordsBurst),
	}
}

// DefaultEndpointConfigs limits the billed pipeline endpoint more strictly
// than reads.
func DefaultEndpointConfigs(keywordsPerMinute, keywordsBurst int) []EndpointConfig {
	return []EndpointConfig{
		{Path: "/v1/keywords", Method: http.MethodPost, Limit: keywordsPerMinute, Window: time.Minute, Burst: keywordsBurst},
	}
}

func toSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, v := range list {
		if v != "" {
			out[v] = true
		}
	}
	return out
}
